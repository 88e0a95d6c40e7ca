package graph

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/google/uuid"
)

// State is the shared, versioned object the nodes of a graph read and update.
// Nodes return partial states; the schema merges them field by field.
type State = map[string]any

// MessagesKey is the conventional state key for conversation histories.
const MessagesKey = "messages"

// Reducer defines how a state value should be updated.
// It takes the current value (nil when the field is absent) and the new value,
// and returns the merged value.
type Reducer func(current, new any) (any, error)

// Identifiable is implemented by items merged with MergeByIDReducer.
type Identifiable interface {
	Identity() string
}

type identitySetter interface {
	SetIdentity(id string)
}

// MapSchema defines the fields of a State: the reducer merging each field and,
// optionally, the Go type a field decodes into when read back from a checkpoint.
// Fields without a reducer are overwritten.
type MapSchema struct {
	Reducers map[string]Reducer
	Types    map[string]reflect.Type
}

// NewMapSchema creates a new MapSchema.
func NewMapSchema() *MapSchema {
	return &MapSchema{
		Reducers: make(map[string]Reducer),
		Types:    make(map[string]reflect.Type),
	}
}

// RegisterReducer adds a reducer for a specific key.
func (s *MapSchema) RegisterReducer(key string, reducer Reducer) {
	s.Reducers[key] = reducer
}

// RegisterType records the Go type of sample as the decode type of key.
func (s *MapSchema) RegisterType(key string, sample any) {
	s.Types[key] = reflect.TypeOf(sample)
}

// RegisterField registers a reducer and a decode type for key in one call.
func (s *MapSchema) RegisterField(key string, reducer Reducer, sample any) {
	s.RegisterReducer(key, reducer)
	s.RegisterType(key, sample)
}

// Update merges the partial update into the current state using registered reducers.
// The current state is left untouched.
func (s *MapSchema) Update(current, update State) (State, error) {
	result := make(State, len(current)+len(update))
	maps.Copy(result, current)

	for _, k := range slices.Sorted(maps.Keys(update)) {
		v := update[k]
		reducer, ok := s.Reducers[k]
		if !ok {
			result[k] = v
			continue
		}
		merged, err := reducer(result[k], v)
		if err != nil {
			return nil, &SchemaViolationError{Field: k, Err: err}
		}
		result[k] = merged
	}

	return result, nil
}

// Encode serializes a state for a checkpoint.
func (s *MapSchema) Encode(state State) ([]byte, error) {
	if state == nil {
		state = State{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return data, nil
}

// Decode deserializes a checkpoint state, restoring registered field types.
func (s *MapSchema) Decode(data []byte) (State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	state := make(State, len(raw))
	for k, v := range raw {
		if t, ok := s.Types[k]; ok && t != nil {
			ptr := reflect.New(t)
			if err := json.Unmarshal(v, ptr.Interface()); err != nil {
				return nil, fmt.Errorf("failed to unmarshal field %s as %s: %w", k, t, err)
			}
			state[k] = ptr.Elem().Interface()
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, fmt.Errorf("failed to unmarshal field %s: %w", k, err)
		}
		state[k] = val
	}
	return state, nil
}

// Common Reducers

// OverwriteReducer replaces the old value with the new one.
func OverwriteReducer(current, new any) (any, error) {
	return new, nil
}

// AppendReducer combines the old and the new value:
// slices are concatenated (a single element is appended), numbers are added and
// strings are concatenated. Any other pairing is an error.
func AppendReducer(current, new any) (any, error) {
	if new == nil {
		return current, nil
	}
	newVal := reflect.ValueOf(new)

	if current == nil {
		switch {
		case newVal.Kind() == reflect.Slice, isNumber(newVal), newVal.Kind() == reflect.String:
			return new, nil
		default:
			return nil, fmt.Errorf("append needs a sequence or a number, got %T", new)
		}
	}

	currVal := reflect.ValueOf(current)

	if sum, ok := addNumbers(currVal, newVal); ok {
		return sum, nil
	}

	if currVal.Kind() == reflect.String && newVal.Kind() == reflect.String {
		return currVal.String() + newVal.String(), nil
	}

	if currVal.Kind() != reflect.Slice {
		return nil, fmt.Errorf("current value %T is not a sequence", current)
	}

	if newVal.Kind() != reflect.Slice {
		// Append single element
		if newVal.Type().AssignableTo(currVal.Type().Elem()) {
			out := reflect.MakeSlice(currVal.Type(), 0, currVal.Len()+1)
			out = reflect.AppendSlice(out, currVal)
			return reflect.Append(out, newVal).Interface(), nil
		}
		result := toAnySlice(currVal, currVal.Len()+1)
		return append(result, new), nil
	}

	if currVal.Type().Elem() != newVal.Type().Elem() {
		// Types don't match, convert both to []any
		result := toAnySlice(currVal, currVal.Len()+newVal.Len())
		for i := 0; i < newVal.Len(); i++ {
			result = append(result, newVal.Index(i).Interface())
		}
		return result, nil
	}

	// Always copy: the current slice may back an earlier checkpoint.
	out := reflect.MakeSlice(currVal.Type(), 0, currVal.Len()+newVal.Len())
	out = reflect.AppendSlice(out, currVal)
	out = reflect.AppendSlice(out, newVal)
	return out.Interface(), nil
}

// MergeByIDReducer merges sequences of identifiable items.
// An incoming item replaces the existing item with the same identity, keeping its
// position; otherwise it is appended. Incoming items without an identity get a
// fresh one first, so they are always appended.
func MergeByIDReducer(current, new any) (any, error) {
	if new == nil {
		return current, nil
	}

	newVal := reflect.ValueOf(new)
	if newVal.Kind() != reflect.Slice {
		single := reflect.MakeSlice(reflect.SliceOf(newVal.Type()), 0, 1)
		newVal = reflect.Append(single, newVal)
	}

	var currVal reflect.Value
	if current == nil {
		currVal = reflect.MakeSlice(newVal.Type(), 0, 0)
	} else {
		currVal = reflect.ValueOf(current)
		if currVal.Kind() != reflect.Slice {
			return nil, fmt.Errorf("current value %T is not a sequence", current)
		}
	}

	sliceType := currVal.Type()
	if currVal.Type().Elem() != newVal.Type().Elem() {
		sliceType = reflect.TypeOf([]any(nil))
	}

	out := reflect.MakeSlice(sliceType, 0, currVal.Len()+newVal.Len())
	index := make(map[string]int, currVal.Len())
	for i := 0; i < currVal.Len(); i++ {
		item := currVal.Index(i)
		out = reflect.Append(out, item)
		if id, ok := identityOf(item); ok && id != "" {
			index[id] = i
		}
	}

	for i := 0; i < newVal.Len(); i++ {
		item := newVal.Index(i)
		id, ok := identityOf(item)
		if !ok {
			return nil, fmt.Errorf("item of type %s carries no identity", item.Type())
		}
		if id == "" {
			id = uuid.NewString()
			item = withIdentity(item, id)
		}
		if pos, exists := index[id]; exists {
			out.Index(pos).Set(item)
			continue
		}
		index[id] = out.Len()
		out = reflect.Append(out, item)
	}

	return out.Interface(), nil
}

func identityOf(v reflect.Value) (string, bool) {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return "", false
	}
	if item, ok := v.Interface().(Identifiable); ok {
		return item.Identity(), true
	}
	if m, ok := v.Interface().(map[string]any); ok {
		id, _ := m["id"].(string)
		return id, true
	}
	return "", false
}

// withIdentity returns a copy of v carrying id; v itself is never modified.
func withIdentity(v reflect.Value, id string) reflect.Value {
	if v.Kind() == reflect.Interface {
		return reflect.ValueOf(withIdentity(v.Elem(), id).Interface())
	}

	if m, ok := v.Interface().(map[string]any); ok {
		cp := maps.Clone(m)
		cp["id"] = id
		return reflect.ValueOf(cp)
	}

	if v.Kind() == reflect.Pointer {
		cp := reflect.New(v.Elem().Type())
		cp.Elem().Set(v.Elem())
		if setter, ok := cp.Interface().(identitySetter); ok {
			setter.SetIdentity(id)
		}
		return cp
	}

	cp := reflect.New(v.Type())
	cp.Elem().Set(v)
	if setter, ok := cp.Interface().(identitySetter); ok {
		setter.SetIdentity(id)
	}
	return cp.Elem()
}

func toAnySlice(v reflect.Value, capacity int) []any {
	result := make([]any, 0, capacity)
	for i := 0; i < v.Len(); i++ {
		result = append(result, v.Index(i).Interface())
	}
	return result
}

func isNumber(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// addNumbers adds two numeric values, keeping the current value's type when both
// are integers of the same signedness and falling back to float64 otherwise.
func addNumbers(a, b reflect.Value) (any, bool) {
	if !isNumber(a) || !isNumber(b) {
		return nil, false
	}
	switch {
	case isInt(a) && isInt(b):
		return reflect.ValueOf(a.Int() + b.Int()).Convert(a.Type()).Interface(), true
	case isUint(a) && isUint(b):
		return reflect.ValueOf(a.Uint() + b.Uint()).Convert(a.Type()).Interface(), true
	default:
		return toFloat(a) + toFloat(b), true
	}
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isInt(v):
		return float64(v.Int())
	case isUint(v):
		return float64(v.Uint())
	default:
		return v.Float()
	}
}
