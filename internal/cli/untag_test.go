package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/bitsmith/internal/application/tagging"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
)

func TestRunUntag_RequiresSoft(t *testing.T) {
	withTestConfig(t, "text")
	calls := withTestApp(t, &commandTestApp{untag: &fakeUntag{}})

	_, err := runCommand(t, newUntagCmd(), "acme/foo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--soft")
	assert.Zero(t, *calls)
}

func TestRunUntag_Removed(t *testing.T) {
	withTestConfig(t, "text")
	untag := &fakeUntag{out: &tagging.UntagSoftOutput{Removed: []tag.SoftTagRecord{
		{Component: component.MustParseID("acme/foo"), Version: "1.0.1"},
	}}}
	withTestApp(t, &commandTestApp{untag: untag})

	out, err := runCommand(t, newUntagCmd(), "--soft", "acme/*")
	require.NoError(t, err)
	assert.Equal(t, "✓ 1 soft tag(s) removed\n     > acme/foo@1.0.1\n", out)
	assert.Equal(t, []string{"acme/*"}, untag.got.IDs)
}

func TestRunUntag_NothingToRemove(t *testing.T) {
	withTestConfig(t, "text")
	withTestApp(t, &commandTestApp{untag: &fakeUntag{out: &tagging.UntagSoftOutput{}}})

	out, err := runCommand(t, newUntagCmd(), "--soft")
	require.NoError(t, err)
	assert.Equal(t, "ℹ no soft tags to remove\n", out)
}
