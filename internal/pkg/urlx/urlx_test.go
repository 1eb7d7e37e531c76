package urlx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseStripsQuery(t *testing.T) {
	assert.Equal(t, "https://x.com/app", Base("https://x.com/app?s=1"))
	assert.Equal(t, "https://x.com/app", Base("https://x.com/app?s=2"))
	assert.Equal(t, "https://x.com/app", Base("https://x.com/app"))
}

func TestBaseDefaultsScheme(t *testing.T) {
	assert.Equal(t, "https://x.com/app", Base("x.com/app?session=9"))
}

func TestBaseKeepsPathAndPort(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/game/1", Base("http://localhost:8080/game/1?seat=2#top"))
}

func TestHostIgnoresWWW(t *testing.T) {
	assert.Equal(t, "victim.com", Host("https://victim.com/x"))
	assert.Equal(t, "victim.com", Host("https://www.victim.com"))
	assert.Equal(t, Host("https://www.victim.com"), Host("victim.com/path"))
}

func TestDomainFallback(t *testing.T) {
	assert.Equal(t, "play.example.org", Domain("https://play.example.org/world/3?x=1"))
}
