package model

// Messaging is the parsed output of the messaging generation stage.
type Messaging struct {
	Raw             string `json:"raw"`
	SelectedService string `json:"selected_service"`
	ProblemSolved   string `json:"problem_solved"`
	IntentSignals   string `json:"intent_signals"`
}
