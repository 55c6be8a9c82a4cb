package sync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	tests := []struct {
		name     string
		err      *Error
		message  string
		class    error
		hasCause bool
	}{
		{
			name:     "item error",
			err:      newError(ErrFilesystem, Modules, "news", "write", cause),
			message:  `modules "news": write: disk full`,
			class:    ErrFilesystem,
			hasCause: true,
		},
		{
			name:    "kind error without cause",
			err:     newError(ErrLocked, Templates, "", "lock", nil),
			message: "templates: lock: sync already running",
			class:   ErrLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.message, tt.err.Error())
			assert.ErrorIs(t, tt.err, tt.class)
			assert.Equal(t, tt.class, Class(tt.err))
			assert.Equal(t, tt.hasCause, errors.Is(tt.err, cause))
		})
	}

	assert.Nil(t, Class(cause))
}
