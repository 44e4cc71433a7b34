package command

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/classgroup"
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
)

var inviteCodePattern = regexp.MustCompile(`^[A-Z][0-9]{4}$`)

func TestCreateClass(t *testing.T) {
	t.Run("creates with a well-formed invite code", func(t *testing.T) {
		classes := newFakeClasses()
		h := NewCreateClassHandler(classes, nil)

		c, err := h.Handle(context.Background(), CreateClassCommand{
			TeacherID: "t1", Grade: 7, ClassNum: 2,
		})
		require.NoError(t, err)

		assert.Regexp(t, inviteCodePattern, c.InviteCode)
		assert.True(t, c.AllowDigitalMode)
		assert.True(t, c.AllowNormalMode)
		assert.True(t, c.AllowThemeChange)
		assert.Contains(t, classes.byID, c.ID)
	})

	t.Run("retries invite code collisions", func(t *testing.T) {
		classes := newFakeClasses()
		classes.collisions = 3
		h := NewCreateClassHandler(classes, nil)

		c, err := h.Handle(context.Background(), CreateClassCommand{
			TeacherID: "t1", Grade: 7, ClassNum: 2,
		})
		require.NoError(t, err)
		assert.Regexp(t, inviteCodePattern, c.InviteCode)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		classes := newFakeClasses()
		classes.collisions = inviteCodeAttempts
		h := NewCreateClassHandler(classes, nil)

		_, err := h.Handle(context.Background(), CreateClassCommand{
			TeacherID: "t1", Grade: 7, ClassNum: 2,
		})
		assert.ErrorIs(t, err, ErrInviteCodeExhausted)
	})

	t.Run("validation", func(t *testing.T) {
		h := NewCreateClassHandler(newFakeClasses(), nil)

		_, err := h.Handle(context.Background(), CreateClassCommand{Grade: 7, ClassNum: 2})
		assert.ErrorIs(t, err, shared.ErrInvalidID)

		_, err = h.Handle(context.Background(), CreateClassCommand{TeacherID: "t1", Grade: 0, ClassNum: 2})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestJoinClass(t *testing.T) {
	newClassWithCode := func(code string) (*fakeClasses, shared.ClassID) {
		classes := newFakeClasses()
		c := &classgroup.ClassGroup{ID: "class-1", TeacherID: "t1", InviteCode: code}
		classes.byID[c.ID] = c
		classes.byCode[code] = c
		return classes, c.ID
	}

	t.Run("enrolls at the floor with zero xp", func(t *testing.T) {
		classes, classID := newClassWithCode("A1234")
		participants := newFakeParticipants()
		h := NewJoinClassHandler(classes, participants, nil)

		p, err := h.Handle(context.Background(), JoinClassCommand{
			InviteCode: "A1234", DisplayName: "Dana", Number: 7,
		})
		require.NoError(t, err)

		assert.Equal(t, classID, p.ClassID)
		assert.Equal(t, student.XP(0), p.CurrentXP)
		assert.Equal(t, student.FloorLevel, p.CurrentLevel)
		require.Len(t, participants.created, 1)
	})

	t.Run("unknown invite code", func(t *testing.T) {
		classes, _ := newClassWithCode("A1234")
		h := NewJoinClassHandler(classes, newFakeParticipants(), nil)

		_, err := h.Handle(context.Background(), JoinClassCommand{InviteCode: "Z9999", DisplayName: "Dana"})
		assert.ErrorIs(t, err, classgroup.ErrInviteCodeNotFound)
	})

	t.Run("empty display name rejected", func(t *testing.T) {
		classes, _ := newClassWithCode("A1234")
		h := NewJoinClassHandler(classes, newFakeParticipants(), nil)

		_, err := h.Handle(context.Background(), JoinClassCommand{InviteCode: "A1234"})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestSetClassModes(t *testing.T) {
	seed := func() (*fakeClasses, *fakeBroadcaster) {
		classes := newFakeClasses()
		classes.byID["class-1"] = &classgroup.ClassGroup{
			ID: "class-1", AllowDigitalMode: true, AllowNormalMode: true, AllowThemeChange: true,
		}
		return classes, &fakeBroadcaster{}
	}

	t.Run("persists and broadcasts the toggles", func(t *testing.T) {
		classes, bus := seed()
		h := NewSetClassModesHandler(classes, bus, nil)

		c, err := h.Handle(context.Background(), SetClassModesCommand{
			ClassID: "class-1", AllowDigitalMode: false, AllowNormalMode: true, AllowThemeChange: false,
		})
		require.NoError(t, err)
		assert.False(t, c.AllowDigitalMode)
		assert.False(t, c.AllowThemeChange)

		require.Len(t, bus.published, 1)
		assert.Equal(t, monitoring.SessionModeTopic("class-1"), bus.published[0].topic)
		change, ok := bus.published[0].payload.(ModeChange)
		require.True(t, ok)
		assert.False(t, change.AllowDigitalMode)
		assert.True(t, change.AllowNormalMode)
	})

	t.Run("broadcast failure keeps the persisted state", func(t *testing.T) {
		classes, bus := seed()
		bus.publishErr = errors.New("bus down")
		h := NewSetClassModesHandler(classes, bus, nil)

		c, err := h.Handle(context.Background(), SetClassModesCommand{ClassID: "class-1"})
		require.NoError(t, err)
		assert.False(t, c.AllowDigitalMode)
	})

	t.Run("unknown class", func(t *testing.T) {
		classes, bus := seed()
		h := NewSetClassModesHandler(classes, bus, nil)

		_, err := h.Handle(context.Background(), SetClassModesCommand{ClassID: "nope"})
		assert.ErrorIs(t, err, classgroup.ErrClassNotFound)
	})
}
