package event

// GameState enumerates the game session states the capture adapter reports.
type GameState int

const (
	StateNone GameState = iota
	StateGameplay
	StateSplash
	StateGameOver
	StateGameComplete
	StatePaused
	StateUnused01
	StateNIS
	StateHab
	StateLoading
)

// stateCodes maps each state to its stable lowercase wire code. Declared
// explicitly for the same reason as kindTags: the codes are a contract.
var stateCodes = map[GameState]string{
	StateNone:         "none",
	StateGameplay:     "gameplay",
	StateSplash:       "splash",
	StateGameOver:     "gameover",
	StateGameComplete: "gamecomplete",
	StatePaused:       "paused",
	StateUnused01:     "unused01",
	StateNIS:          "nis",
	StateHab:          "hab",
	StateLoading:      "loading",
}

// Code returns the stable lowercase wire code for the state.
func (s GameState) Code() string {
	if code, ok := stateCodes[s]; ok {
		return code
	}
	return "unknown state"
}

func (s GameState) String() string { return s.Code() }
