package usecase

// typewriter reveals a message one rune per tick and decides, exactly once,
// when the whole message should be handed to speech.
type typewriter struct {
	text   string
	runes  []rune
	shown  int
	spoken bool
}

func newTypewriter(text string) *typewriter {
	return &typewriter{text: text, runes: []rune(text)}
}

// step reveals the next rune. speak is true on the single tick that should
// trigger speech: the first sentence terminator, else half way, else the end.
func (t *typewriter) step() (speak bool, done bool) {
	if t.shown < len(t.runes) {
		t.shown++
	}
	done = t.shown >= len(t.runes)
	if t.spoken {
		return false, done
	}

	last := t.runes[t.shown-1]
	if isSentenceTerminator(last) || t.shown*2 >= len(t.runes) || done {
		t.spoken = true
		return true, done
	}
	return false, done
}

func (t *typewriter) prefix() string {
	return string(t.runes[:t.shown])
}

func (t *typewriter) empty() bool {
	return len(t.runes) == 0
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
