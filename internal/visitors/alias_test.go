package visitors_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pagetrail/internal/visitors"
)

func TestAlias(t *testing.T) {
	t.Run("generates consistent alias for same visitor", func(t *testing.T) {
		visitorID := "test-visitor-123"

		alias1 := visitors.Alias(visitorID)
		alias2 := visitors.Alias(visitorID)

		assert.Equal(t, alias1, alias2, "Same visitor should generate same alias")
		assert.NotEmpty(t, alias1)
	})

	t.Run("alias format is 'Adjective Animal'", func(t *testing.T) {
		alias := visitors.Alias("test-visitor")
		assert.Regexp(t, `^[A-Z][a-z]+ [A-Z][a-z]+$`, alias)
	})

	t.Run("distributes across combinations", func(t *testing.T) {
		aliases := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			aliases[visitors.Alias(string(rune(i)))] = true
		}
		assert.Greater(t, len(aliases), 100, "Should generate variety of aliases")
	})
}
