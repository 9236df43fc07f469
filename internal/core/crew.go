package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"educrm.io/ai-agent/internal/llm"
	"educrm.io/ai-agent/internal/logger"
)

type crewInput struct {
	query   string
	profile string
	courses string
}

type crewTask struct {
	name     string
	agent    crewAgent
	describe func(in crewInput) string
}

var recommendationTasks = []crewTask{
	{
		name:  "analyze_user_needs",
		agent: educationAdvisor,
		describe: func(in crewInput) string {
			return fmt.Sprintf("Analyze the user query: %q together with their profile to understand their educational needs and goals.\n\nUser profile:\n%s",
				in.query, in.profile)
		},
	},
	{
		name:  "find_matching_courses",
		agent: contentExpert,
		describe: func(in crewInput) string {
			return "Based on the user's needs, review the available courses and identify the top 3 most suitable options.\n\nAvailable courses:\n" + in.courses
		},
	},
	{
		name:  "explain_career_benefits",
		agent: careerCounselor,
		describe: func(crewInput) string {
			return "For each recommended course, explain how it will benefit the user's career path and which specific job opportunities it might open up."
		},
	},
}

// CrewOrchestrator runs the recommendation tasks one after another over the
// completion client. Every task sees the outputs of the tasks before it and the
// last task's output is the result.
type CrewOrchestrator struct {
	completer   llm.Completer
	temperature float32
	log         *logger.Logger
}

func NewCrewOrchestrator(completer llm.Completer, temperature float32, log *logger.Logger) *CrewOrchestrator {
	return &CrewOrchestrator{completer: completer, temperature: temperature, log: log.With("service", "CrewOrchestrator")}
}

func (o *CrewOrchestrator) Run(ctx context.Context, query string, profile UserProfile, courses []CourseSummary) (string, error) {
	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}
	coursesJSON, err := json.MarshalIndent(courses, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode courses: %w", err)
	}
	in := crewInput{query: query, profile: string(profileJSON), courses: string(coursesJSON)}

	var (
		outputs []string
		last    string
	)
	for _, task := range recommendationTasks {
		prompt := []llm.Message{
			{Role: llm.RoleSystem, Content: task.agent.systemPrompt()},
			{Role: llm.RoleUser, Content: taskPrompt(task.describe(in), outputs)},
		}
		out, err := o.completer.Complete(ctx, prompt, o.temperature)
		if err != nil {
			return "", fmt.Errorf("task %s: %w", task.name, err)
		}
		o.log.Debug("Crew task finished", "task", task.name, "agent", task.agent.Role)
		outputs = append(outputs, fmt.Sprintf("[%s]\n%s", task.agent.Role, out))
		last = out
	}
	return last, nil
}

func taskPrompt(description string, previous []string) string {
	if len(previous) == 0 {
		return description
	}
	var b strings.Builder
	b.WriteString(description)
	b.WriteString("\n\nWork done so far by the rest of the team:\n\n")
	b.WriteString(strings.Join(previous, "\n\n"))
	return b.String()
}
