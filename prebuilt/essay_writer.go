package prebuilt

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/tool"
)

// State fields of the essay writer.
const (
	TaskKey           = "task"
	PlanKey           = "plan"
	DraftKey          = "draft"
	CritiqueKey       = "critique"
	ContentKey        = "content"
	RevisionNumberKey = "revision_number"
	MaxRevisionsKey   = "max_revisions"
)

// Node names of the essay writer.
const (
	PlannerNode          = "planner"
	ResearchPlanNode     = "research_plan"
	GenerateNode         = "generate"
	ReflectNode          = "reflect"
	ResearchCritiqueNode = "research_critique"
)

// Prompts used by the essay writer.
const (
	PlanPrompt = "You are an expert writer tasked with writing a high level outline of an essay. " +
		"Write such an outline for the user provided topic. Give an outline of the essay along with any relevant notes " +
		"or instructions for the sections."

	ResearchPlanPrompt = "You are a researcher charged with providing information that can " +
		"be used when writing the following essay. Generate a list of search queries that will gather " +
		"any relevant information. Only generate 3 queries max."

	WriterPrompt = "You are an essay assistant tasked with writing excellent 5-paragraph essays. " +
		"Generate the best essay possible for the user's request and the initial outline. " +
		"If the user provides critique, respond with a revised version of your previous attempts. " +
		"Utilize all the information below as needed: \n\n------\n\n%s"

	ReflectionPrompt = "You are a teacher grading an essay submission. " +
		"Generate critique and recommendations for the user's submission. " +
		"Provide detailed recommendations, including requests for length, depth, style, etc."

	ResearchCritiquePrompt = "You are a researcher charged with providing information that can " +
		"be used when making any requested revisions (as outlined below). " +
		"Generate a list of search queries that will gather any relevant information. Only generate 3 queries max."

	queriesFormat = "\n\nRespond with a JSON object of the form {\"queries\": [\"...\"]}."
)

// EssayWriterConfig configures CreateEssayWriter.
type EssayWriterConfig struct {
	// Model writes plans, drafts, critiques and search queries.
	Model llms.ChatModel

	// Searcher gathers research content. Without one the research nodes add nothing.
	Searcher tool.Searcher

	// MaxQueries caps the queries per research step. Default 3.
	MaxQueries int

	// ResultsPerQuery is the number of documents kept per query. Default 2.
	ResultsPerQuery int

	Logger         log.Logger
	CompileOptions []graph.CompileOption
}

// NewEssaySchema returns the schema of the essay writer state. Research content
// accumulates across steps.
func NewEssaySchema() *graph.MapSchema {
	schema := graph.NewMapSchema()
	schema.RegisterField(ContentKey, graph.AppendReducer, []string(nil))
	schema.RegisterType(TaskKey, "")
	schema.RegisterType(PlanKey, "")
	schema.RegisterType(DraftKey, "")
	schema.RegisterType(CritiqueKey, "")
	schema.RegisterType(RevisionNumberKey, 0)
	schema.RegisterType(MaxRevisionsKey, 0)
	return schema
}

// EssayInput is the initial state of an essay thread.
func EssayInput(task string, maxRevisions int) graph.State {
	return graph.State{
		TaskKey:           task,
		MaxRevisionsKey:   maxRevisions,
		RevisionNumberKey: 1,
	}
}

// CreateEssayWriter builds the plan, research, write and critique loop:
//
//	planner -> research_plan -> generate -> reflect -> research_critique -> generate
//
// generate ends the run once revision_number exceeds max_revisions.
func CreateEssayWriter(config EssayWriterConfig) (*graph.Runnable, error) {
	if config.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if config.MaxQueries <= 0 {
		config.MaxQueries = 3
	}
	if config.ResultsPerQuery <= 0 {
		config.ResultsPerQuery = 2
	}
	if config.Logger == nil {
		config.Logger = log.GetDefaultLogger()
	}
	w := &essayWriter{EssayWriterConfig: config}

	workflow := graph.NewStateGraph()
	workflow.SetSchema(NewEssaySchema())

	workflow.AddNode(PlannerNode, "Write an outline", w.plan)
	workflow.AddNode(ResearchPlanNode, "Research the task", w.research(ResearchPlanPrompt, TaskKey))
	workflow.AddNode(GenerateNode, "Write a draft", w.generate)
	workflow.AddNode(ReflectNode, "Critique the draft", w.reflect)
	workflow.AddNode(ResearchCritiqueNode, "Research the critique", w.research(ResearchCritiquePrompt, CritiqueKey))

	workflow.SetEntryPoint(PlannerNode)
	workflow.AddEdge(PlannerNode, ResearchPlanNode)
	workflow.AddEdge(ResearchPlanNode, GenerateNode)
	workflow.AddConditionalEdge(GenerateNode, graph.When(shouldContinue, ReflectNode, graph.END), map[string]string{
		ReflectNode: ReflectNode,
		graph.END:   graph.END,
	})
	workflow.AddEdge(ReflectNode, ResearchCritiqueNode)
	workflow.AddEdge(ResearchCritiqueNode, GenerateNode)

	return workflow.Compile(config.CompileOptions...)
}

type essayWriter struct {
	EssayWriterConfig
}

func (w *essayWriter) ask(ctx context.Context, system, user string) (string, error) {
	reply, err := w.Model.Generate(ctx, []graph.Message{
		graph.SystemMessage(system),
		graph.HumanMessage(user),
	}, nil)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

func (w *essayWriter) plan(ctx context.Context, state graph.State) (graph.State, error) {
	plan, err := w.ask(ctx, PlanPrompt, stringField(state, TaskKey))
	if err != nil {
		return nil, err
	}
	return graph.State{PlanKey: plan}, nil
}

// research asks the model for queries about the field and searches each one.
func (w *essayWriter) research(prompt, field string) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.State, error) {
		reply, err := w.ask(ctx, prompt+queriesFormat, stringField(state, field))
		if err != nil {
			return nil, err
		}
		queries := ParseQueries(reply, w.MaxQueries)
		if w.Searcher == nil {
			return graph.State{}, nil
		}

		var content []string
		for _, q := range queries {
			docs, err := w.Searcher.Search(ctx, q, w.ResultsPerQuery)
			if err != nil {
				return nil, fmt.Errorf("search %q: %w", q, err)
			}
			w.Logger.Debug("query %q returned %d documents", q, len(docs))
			content = append(content, tool.Contents(docs)...)
		}
		return graph.State{ContentKey: content}, nil
	}
}

func (w *essayWriter) generate(ctx context.Context, state graph.State) (graph.State, error) {
	content, _ := state[ContentKey].([]string)
	user := fmt.Sprintf("%s\n\nHere is my plan:\n\n%s", stringField(state, TaskKey), stringField(state, PlanKey))
	draft, err := w.ask(ctx, fmt.Sprintf(WriterPrompt, strings.Join(content, "\n\n")), user)
	if err != nil {
		return nil, err
	}
	return graph.State{
		DraftKey:          draft,
		RevisionNumberKey: intField(state, RevisionNumberKey, 1) + 1,
	}, nil
}

func (w *essayWriter) reflect(ctx context.Context, state graph.State) (graph.State, error) {
	critique, err := w.ask(ctx, ReflectionPrompt, stringField(state, DraftKey))
	if err != nil {
		return nil, err
	}
	return graph.State{CritiqueKey: critique}, nil
}

func shouldContinue(_ context.Context, state graph.State) string {
	if intField(state, RevisionNumberKey, 1) > intField(state, MaxRevisionsKey, 0) {
		return graph.END
	}
	return ReflectNode
}

var listMarkerRe = regexp.MustCompile(`^\s*(?:[-*]|\d+[.)])\s+`)

// ParseQueries reads search queries from a model reply: a JSON object with a
// "queries" list, a JSON list, or one query per line. At most limit are kept.
func ParseQueries(reply string, limit int) []string {
	text := strings.TrimSpace(reply)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var queries []string
	var obj struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj.Queries != nil {
		queries = obj.Queries
	} else if err := json.Unmarshal([]byte(text), &queries); err != nil {
		queries = nil
		for line := range strings.Lines(text) {
			line = strings.TrimSpace(listMarkerRe.ReplaceAllString(line, ""))
			if line != "" {
				queries = append(queries, line)
			}
		}
	}

	if limit > 0 && len(queries) > limit {
		queries = queries[:limit]
	}
	return queries
}

func stringField(state graph.State, key string) string {
	s, _ := state[key].(string)
	return s
}

func intField(state graph.State, key string, def int) int {
	switch v := state[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
