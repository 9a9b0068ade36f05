// internal/battle/profiles.go
package battle

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jason-s-yu/codeduel/internal/models"
)

// BotProfile tunes the simulated opponent for one difficulty.
type BotProfile struct {
	SolveProbability float64 `toml:"solve_probability"`
	MinPoints        int     `toml:"min_points"`
	MaxPoints        int     `toml:"max_points"`
}

// BotProfiles is the simulator configuration, normally read from a TOML file:
//
//	min_delay_ms = 8000
//	jitter_ms = 17000
//
//	[difficulty.EASY]
//	solve_probability = 0.8
//	min_points = 100
//	max_points = 150
type BotProfiles struct {
	MinDelayMs uint                  `toml:"min_delay_ms"`
	JitterMs   uint                  `toml:"jitter_ms"`
	Difficulty map[string]BotProfile `toml:"difficulty"`
}

// DefaultBotProfiles favours the bot on easy problems and keeps its scores inside
// the band a human can earn.
func DefaultBotProfiles() BotProfiles {
	return BotProfiles{
		MinDelayMs: 8000,
		JitterMs:   17000,
		Difficulty: map[string]BotProfile{
			string(models.DifficultyEasy):   {SolveProbability: 0.8, MinPoints: 100, MaxPoints: 150},
			string(models.DifficultyMedium): {SolveProbability: 0.6, MinPoints: 100, MaxPoints: 150},
			string(models.DifficultyHard):   {SolveProbability: 0.35, MinPoints: 100, MaxPoints: 150},
		},
	}
}

func (p BotProfiles) MinDelay() time.Duration {
	return time.Duration(p.MinDelayMs) * time.Millisecond
}

func (p BotProfiles) Jitter() time.Duration {
	return time.Duration(p.JitterMs) * time.Millisecond
}

// For returns the profile for d, falling back to MEDIUM.
func (p BotProfiles) For(d models.Difficulty) BotProfile {
	if prof, ok := p.Difficulty[string(d)]; ok {
		return prof
	}
	return p.Difficulty[string(models.DifficultyMedium)]
}

// Validate checks probabilities and point bands.
func (p BotProfiles) Validate() error {
	if _, ok := p.Difficulty[string(models.DifficultyMedium)]; !ok {
		return fmt.Errorf("bot profiles: MEDIUM profile is required")
	}
	for name, prof := range p.Difficulty {
		if !models.Difficulty(name).Valid() {
			return fmt.Errorf("bot profiles: unknown difficulty %q", name)
		}
		if prof.SolveProbability < 0 || prof.SolveProbability > 1 {
			return fmt.Errorf("bot profiles: %s solve_probability %v outside [0,1]", name, prof.SolveProbability)
		}
		if prof.MinPoints < 0 || prof.MaxPoints < prof.MinPoints {
			return fmt.Errorf("bot profiles: %s point band [%d,%d] is invalid", name, prof.MinPoints, prof.MaxPoints)
		}
	}
	return nil
}

// DecodeBotProfiles reads a TOML document over the defaults. Top-level keys and whole
// difficulty tables that are absent keep their default values.
func DecodeBotProfiles(r io.Reader) (BotProfiles, error) {
	p := DefaultBotProfiles()
	if _, err := toml.NewDecoder(r).Decode(&p); err != nil {
		return BotProfiles{}, fmt.Errorf("decode bot profiles: %w", err)
	}
	if err := p.Validate(); err != nil {
		return BotProfiles{}, err
	}
	return p, nil
}

// LoadBotProfiles reads the profile file at path, or returns the defaults when path is empty.
func LoadBotProfiles(path string) (BotProfiles, error) {
	if path == "" {
		return DefaultBotProfiles(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return BotProfiles{}, fmt.Errorf("open bot profiles: %w", err)
	}
	defer f.Close()
	return DecodeBotProfiles(f)
}
