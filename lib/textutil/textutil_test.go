package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, "what is your gender?", Normalize("  What is\tyour\n\ngender? "))
}

func TestMatchAny(t *testing.T) {
	texts := []string{"q1", "Do you   agree?"}

	require.True(t, MatchAny(texts, nil))
	require.True(t, MatchAny(texts, []string{"AGREE"}))
	require.True(t, MatchAny(texts, []string{"nope", "you agree"}))
	require.True(t, MatchAny(texts, []string{"Q1"}))
	require.False(t, MatchAny(texts, []string{"gender"}))
	require.False(t, MatchAny(texts, []string{" "}))
}
