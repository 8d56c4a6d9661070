package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorFormatting(t *testing.T) {
	err := NewDomainError("Directory.Resolve", ErrAgentNotFound, "weather")
	assert.Equal(t, "Directory.Resolve: weather: agent not found", err.Error())

	bare := NewDomainError("Directory.Resolve", ErrAgentNotFound, "")
	assert.Equal(t, "Directory.Resolve: agent not found", bare.Error())
}

func TestDomainErrorUnwrapsToSentinel(t *testing.T) {
	err := NewDomainError("Orchestrator.Start", ErrInvalidInput, "empty workflow")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, ErrAgentNotFound)
}

func TestWrapOp(t *testing.T) {
	assert.NoError(t, WrapOp("anything", nil))

	inner := errors.New("boom")
	wrapped := WrapOp("start server", inner)
	assert.ErrorIs(t, wrapped, inner)
	assert.Equal(t, "start server: boom", wrapped.Error())
}
