package worker

import (
	"github.com/storyreel/backend/internal/services"
)

const (
	// Floor for any single scene. Below this a slide flashes past before the
	// viewer registers it.
	minSceneSeconds = 1.5

	// Used when the narration length is not yet known.
	defaultSceneSeconds = 3.0
)

// computeSceneDurations splits the narration time evenly across scenes. When
// totalSeconds is unknown (zero or negative) every scene gets the default
// length. Very short narrations still hold each scene on screen for the
// minimum; -shortest on the final encode trims the overrun.
func computeSceneDurations(totalSeconds float64, sceneCount int) ([]float64, error) {
	if sceneCount <= 0 {
		return nil, &services.Error{Kind: services.ErrInvalidInput, Message: "scene count must be positive"}
	}

	per := defaultSceneSeconds
	if totalSeconds > 0 {
		per = totalSeconds / float64(sceneCount)
		if per < minSceneSeconds {
			per = minSceneSeconds
		}
	}

	durations := make([]float64, sceneCount)
	for i := range durations {
		durations[i] = per
	}
	return durations, nil
}
