package rfi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labdesk/labdesk/internal/rbac"
	"github.com/labdesk/labdesk/internal/shared"
)

var (
	t0        = time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)
	labActor  = rbac.Actor{ID: "eng-1", Role: rbac.RoleStaff}
	clientRep = rbac.Actor{ID: "contact-1", Role: rbac.RoleClient}
)

func labInitiated() SubmitInput {
	return SubmitInput{
		ProjectID:      "p-1",
		ClientID:       "client-9",
		InitiationType: SideLab,
		Subject:        "Missing mix design",
		Description:    "Please share the approved mix design for pour 3.",
		Participants: Participants{
			InitiatorLab:   []Ref{{ID: "eng-1", Name: "Eng"}},
			ReceiverClient: []Ref{{ID: "contact-1", Name: "Ana", Email: "ana@client.test"}},
		},
	}
}

func clientInitiated() SubmitInput {
	return SubmitInput{
		ProjectID:      "p-1",
		InitiationType: SideClient,
		Subject:        "Core results",
		Participants: Participants{
			InitiatorClient: []Ref{{ID: "contact-1", Email: "ana@client.test"}},
			ReceiverLab:     []Ref{{ID: "eng-1"}},
		},
	}
}

func TestNewRecordsCreation(t *testing.T) {
	r, err := New("rfi-1", labInitiated(), labActor, t0)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, r.Status)
	require.Equal(t, t0, r.DateSubmitted)
	require.Nil(t, r.DateResolved)
	require.Empty(t, r.Conversation)
	require.Len(t, r.StatusHistory, 1)
	require.Equal(t, HistoryEntry{Status: StatusOpen, Timestamp: t0, ChangedBy: labActor}, r.StatusHistory[0])
}

func TestNewValidation(t *testing.T) {
	cases := map[string]func(*SubmitInput){
		"no project":        func(in *SubmitInput) { in.ProjectID = "" },
		"no subject":        func(in *SubmitInput) { in.Subject = "  " },
		"bad initiation":    func(in *SubmitInput) { in.InitiationType = "vendor" },
		"no receivers":      func(in *SubmitInput) { in.Participants.ReceiverClient = nil },
		"blank participant": func(in *SubmitInput) { in.Participants.InitiatorLab = []Ref{{Name: "x"}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := labInitiated()
			mutate(&in)
			_, err := New("rfi-1", in, labActor, t0)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestAwaitingSide(t *testing.T) {
	require.Equal(t, SideClient, AwaitingSide(StatusOpen, SideLab))
	require.Equal(t, SideLab, AwaitingSide(StatusPendingResponse, SideLab))
	require.Equal(t, SideLab, AwaitingSide(StatusOpen, SideClient))
	require.Equal(t, SideClient, AwaitingSide(StatusPendingResponse, SideClient))
}

func TestTransitionResolveAndReopen(t *testing.T) {
	r, err := New("rfi-1", labInitiated(), labActor, t0)
	require.NoError(t, err)

	resolvedAt := t0.Add(48 * time.Hour)
	resolved, err := r.Transition(StatusResolved, labActor, "answered by phone", "", resolvedAt)
	require.NoError(t, err)
	require.Equal(t, StatusResolved, resolved.Status)
	require.Equal(t, resolvedAt, *resolved.DateResolved)
	require.Equal(t, t0, resolved.DateSubmitted)

	last := resolved.StatusHistory[len(resolved.StatusHistory)-1]
	require.Equal(t, StatusOpen, last.PreviousStatus)
	require.Equal(t, StatusResolved, last.Status)
	require.Equal(t, "answered by phone", last.Reason)

	reopened, err := resolved.Transition(StatusOpen, labActor, "new info", "", resolvedAt.Add(time.Hour))
	require.NoError(t, err)
	require.Nil(t, reopened.DateResolved)
	require.Len(t, reopened.StatusHistory, 3)

	// the source value is untouched
	require.Equal(t, StatusResolved, resolved.Status)
	require.Len(t, resolved.StatusHistory, 2)
}

func TestTransitionClosedIsTerminal(t *testing.T) {
	r, err := New("rfi-1", labInitiated(), labActor, t0)
	require.NoError(t, err)
	closed, err := r.Transition(StatusClosed, labActor, "duplicate", "", t0)
	require.NoError(t, err)

	for _, to := range []Status{StatusOpen, StatusPendingResponse, StatusResolved, StatusClosed} {
		out, err := closed.Transition(to, labActor, "", "", t0)
		require.ErrorIs(t, err, shared.ErrInvalidTransition)
		require.Equal(t, StatusClosed, out.Status)
		require.Len(t, out.StatusHistory, 2)
	}
}

func TestTransitionClosingResolvedKeepsResolutionDate(t *testing.T) {
	r, err := New("rfi-1", labInitiated(), labActor, t0)
	require.NoError(t, err)
	r, err = r.Transition(StatusResolved, labActor, "", "", t0.Add(time.Hour))
	require.NoError(t, err)
	r, err = r.Transition(StatusClosed, labActor, "", "", t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, r.DateResolved)
	require.Equal(t, t0.Add(time.Hour), *r.DateResolved)
}

func TestTransitionUnknownStatus(t *testing.T) {
	r, err := New("rfi-1", labInitiated(), labActor, t0)
	require.NoError(t, err)
	_, err = r.Transition("archived", labActor, "", "", t0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestInitiatedBy(t *testing.T) {
	r, err := New("rfi-1", clientInitiated(), clientRep, t0)
	require.NoError(t, err)
	require.True(t, r.InitiatedBy(clientRep))
	require.False(t, r.InitiatedBy(rbac.Actor{ID: "contact-2", Role: rbac.RoleClient}))

	lab, err := New("rfi-2", labInitiated(), labActor, t0)
	require.NoError(t, err)
	require.False(t, lab.InitiatedBy(clientRep))
}
