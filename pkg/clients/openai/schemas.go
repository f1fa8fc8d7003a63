package openai

import (
	gopenai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/mnuel1/chat-fieldiq/internal/service/chat"
)

// intentSpec couples an extraction intent with its system prompt, function
// schema, and the argument key holding newly extracted form fields.
type intentSpec struct {
	systemPrompt string
	function     gopenai.FunctionDefinition
	formKey      string
}

const intentPrompt = `You are an intent classifier for a smart farming assistant supporting poultry farmers.
Classify the user's message into exactly one intent id:
1 = general feed or farming question
2 = report a flock health incident (sickness, deaths, unusual behavior)
3 = report farm performance (weights, feed intake, daily results)
4 = share a local or traditional farming practice
5 = out of scope for a farming assistant
For id 5, write a short polite refusal in the user's language into "response".`

const languagePrompt = `Identify the language the user is writing in. Respond with the language name, for example "English", "Filipino" or "Taglish".`

const advisoryPrompt = `You are a friendly poultry feed advisor for smallholder farmers.
Answer the farmer's question using the active feed program context when it is provided.
Keep answers short, practical and encouraging. Set "log_type" to a short topic
category for the question and "next_action" to "continue".`

const healthLogPrompt = `You help a farmer report a flock health incident through conversation.
Collect these fields over as many turns as needed: incident_type (sickness, mortality or other),
affected_count, symptoms, suspected_cause, requires_vet_visit, feed_info, actions_taken, incident_date.
Put only fields the farmer supplied THIS turn into "incident_details"; never invent values.
When every required field is collected set "next_action" to "log_complete", otherwise
"ask_follow_up" and ask for the next missing field in "response". Set "log_type" to "health_incident".`

const performanceLogPrompt = `You help a farmer report daily farm performance through conversation.
Collect these fields over as many turns as needed: average_weight_kg, feed_conversion_ratio,
mortality_count, feed_intake_kg, feed_intake_status (eating_well, picky or not_eating), notes.
Put only fields the farmer supplied THIS turn into "report_details"; never invent values.
When every required field is collected set "next_action" to "log_complete", otherwise
"ask_follow_up" and ask for the next missing field in "response". Set "log_type" to "performance_report".`

const practiceLogPrompt = `The farmer is sharing a local or traditional farming practice.
Acknowledge it respectfully, note any food-safety concerns, and set "log_type" to "local_practice"
and "next_action" to "continue".`

var intentFunction = gopenai.FunctionDefinition{
	Name:        "classify_intent",
	Description: "Classify the farmer's message into one supported intent.",
	Parameters: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"id":       {Type: jsonschema.Integer, Description: "Intent id from 1 to 5."},
			"response": {Type: jsonschema.String, Description: "Reply text, required for out-of-scope messages."},
			"log_type": {Type: jsonschema.String, Description: "Short category label for the message."},
		},
		Required: []string{"id"},
	},
}

var languageFunction = gopenai.FunctionDefinition{
	Name:        "detect_language",
	Description: "Detect the language of the user's message.",
	Parameters: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"user_language": {Type: jsonschema.String},
		},
		Required: []string{"user_language"},
	},
}

var advisoryFunction = gopenai.FunctionDefinition{
	Name:        "feed_advisory",
	Description: "Answer a general feed or farming question.",
	Parameters: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"response":    {Type: jsonschema.String},
			"log_type":    {Type: jsonschema.String},
			"next_action": {Type: jsonschema.String},
		},
		Required: []string{"response", "log_type"},
	},
}

var healthLogFunction = gopenai.FunctionDefinition{
	Name:        "log_health_incident",
	Description: "Collect health incident fields from the farmer's message.",
	Parameters: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"incident_details": {
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"incident_type":      {Type: jsonschema.String, Enum: []string{"sickness", "mortality", "other"}},
					"affected_count":     {Type: jsonschema.Integer},
					"symptoms":           {Type: jsonschema.String},
					"suspected_cause":    {Type: jsonschema.String},
					"requires_vet_visit": {Type: jsonschema.Boolean},
					"feed_info":          {Type: jsonschema.String},
					"actions_taken":      {Type: jsonschema.String},
					"incident_date":      {Type: jsonschema.String, Description: "YYYY-MM-DD"},
				},
			},
			"next_action": {Type: jsonschema.String, Enum: []string{"ask_follow_up", "log_complete"}},
			"response":    {Type: jsonschema.String},
			"log_type":    {Type: jsonschema.String},
		},
		Required: []string{"incident_details", "next_action", "response", "log_type"},
	},
}

var performanceLogFunction = gopenai.FunctionDefinition{
	Name:        "log_performance_report",
	Description: "Collect farm performance fields from the farmer's message.",
	Parameters: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"report_details": {
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"average_weight_kg":     {Type: jsonschema.Number},
					"feed_conversion_ratio": {Type: jsonschema.Number},
					"mortality_count":       {Type: jsonschema.Integer},
					"feed_intake_kg":        {Type: jsonschema.Number},
					"feed_intake_status":    {Type: jsonschema.String, Enum: []string{"eating_well", "picky", "not_eating"}},
					"notes":                 {Type: jsonschema.String},
				},
			},
			"next_action": {Type: jsonschema.String, Enum: []string{"ask_follow_up", "log_complete"}},
			"response":    {Type: jsonschema.String},
			"log_type":    {Type: jsonschema.String},
		},
		Required: []string{"report_details", "next_action", "response", "log_type"},
	},
}

var practiceLogFunction = gopenai.FunctionDefinition{
	Name:        "log_diy_practice",
	Description: "Acknowledge a shared local farming practice.",
	Parameters: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"response":    {Type: jsonschema.String},
			"log_type":    {Type: jsonschema.String},
			"next_action": {Type: jsonschema.String},
		},
		Required: []string{"response", "log_type"},
	},
}

var intentSpecs = map[chat.Intent]intentSpec{
	chat.IntentGeneralQuestion: {systemPrompt: advisoryPrompt, function: advisoryFunction},
	chat.IntentHealthLog:       {systemPrompt: healthLogPrompt, function: healthLogFunction, formKey: "incident_details"},
	chat.IntentPerformanceLog:  {systemPrompt: performanceLogPrompt, function: performanceLogFunction, formKey: "report_details"},
	chat.IntentPracticeLog:     {systemPrompt: practiceLogPrompt, function: practiceLogFunction},
}
