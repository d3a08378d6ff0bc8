package protocol

// Action is one of the fixed set of ephemeral gestures a participant can play.
type Action string

const (
	ActionWave  Action = "wave"
	ActionDance Action = "dance"
	ActionSit   Action = "sit"
	ActionClap  Action = "clap"
	ActionPoint Action = "point"
	ActionCheer Action = "cheer"
)

// GreetingAction counts toward the greeting quest when played near someone.
const GreetingAction = ActionWave

var Actions = []Action{ActionWave, ActionDance, ActionSit, ActionClap, ActionPoint, ActionCheer}

func ParseAction(s string) (Action, bool) {
	for _, a := range Actions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}
