package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/classgroup"
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/session"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/domain/student"
)

// In-memory collaborator fakes shared by the command handler tests.

type fakeDirectory struct {
	participants map[shared.ParticipantID]*student.Participant
	rosters      map[shared.ClassID][]*student.Participant
	sessions     map[shared.SessionID]shared.ClassID
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		participants: make(map[shared.ParticipantID]*student.Participant),
		rosters:      make(map[shared.ClassID][]*student.Participant),
		sessions:     make(map[shared.SessionID]shared.ClassID),
	}
}

func (d *fakeDirectory) addParticipant(classID shared.ClassID, p *student.Participant) {
	p.ClassID = classID
	d.participants[p.ID] = p
	d.rosters[classID] = append(d.rosters[classID], p)
}

func (d *fakeDirectory) ResolveParticipant(_ context.Context, id shared.ParticipantID) (*student.Participant, error) {
	p, ok := d.participants[id]
	if !ok {
		return nil, student.ErrParticipantNotFound
	}
	return p, nil
}

func (d *fakeDirectory) ListParticipantsForClass(_ context.Context, classID shared.ClassID) ([]*student.Participant, error) {
	return d.rosters[classID], nil
}

func (d *fakeDirectory) ResolveSession(_ context.Context, sessionID shared.SessionID) (*classgroup.SessionInfo, error) {
	classID, ok := d.sessions[sessionID]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return &classgroup.SessionInfo{SessionID: sessionID, ClassID: classID}, nil
}

type fakeEventLog struct {
	mu        sync.Mutex
	appended  []*monitoring.AttentionEvent
	appendErr error
}

func (l *fakeEventLog) Append(_ context.Context, event *monitoring.AttentionEvent) error {
	if l.appendErr != nil {
		return l.appendErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appended = append(l.appended, event)
	return nil
}

func (l *fakeEventLog) FindUnsettled(_ context.Context, participantIDs []shared.ParticipantID) ([]*monitoring.AttentionEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wanted := make(map[shared.ParticipantID]bool, len(participantIDs))
	for _, id := range participantIDs {
		wanted[id] = true
	}
	var out []*monitoring.AttentionEvent
	for _, e := range l.appended {
		if wanted[e.ParticipantID] && !e.IsSettled() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *fakeEventLog) CountUnsettledByType(_ context.Context, participantID shared.ParticipantID, t monitoring.EventType, dayStart, dayEnd time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	for _, e := range l.appended {
		if e.ParticipantID != participantID || e.Type != t || e.IsSettled() {
			continue
		}
		if e.DetectedAt.Before(dayStart) || !e.DetectedAt.Before(dayEnd) {
			continue
		}
		n++
	}
	return n, nil
}

type publishedMessage struct {
	topic   string
	payload any
}

type fakeBroadcaster struct {
	mu         sync.Mutex
	published  []publishedMessage
	publishErr error
}

func (b *fakeBroadcaster) Publish(_ context.Context, topic string, payload any) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, publishedMessage{topic: topic, payload: payload})
	return nil
}

type fakeSettlements struct {
	mu       sync.Mutex
	records  []*session.SettlementRecord
	consumed map[string][]string
	batchErr error

	// entered/block, when set, signal entry into SettleBatch and then hold
	// it until released. Used to force a concurrent settlement attempt
	// while the first run is mid-flight.
	entered chan struct{}
	block   chan struct{}
}

func (s *fakeSettlements) SettleBatch(_ context.Context, records []*session.SettlementRecord, consumed map[string][]string) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	if s.batchErr != nil {
		return s.batchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	if s.consumed == nil {
		s.consumed = make(map[string][]string)
	}
	for recID, eventIDs := range consumed {
		s.consumed[recID] = eventIDs
	}
	return nil
}

func (s *fakeSettlements) ListByParticipant(context.Context, shared.ParticipantID, time.Time, time.Time) ([]*session.SettlementRecord, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeSettlements) ListByParticipants(context.Context, []shared.ParticipantID, time.Time) ([]*session.SettlementRecord, error) {
	return nil, errors.New("not implemented")
}

type xpAward struct {
	participantID shared.ParticipantID
	amount        student.XP
	reason        string
}

type fakeLedger struct {
	mu      sync.Mutex
	awards  []xpAward
	failFor map[shared.ParticipantID]error
}

func (l *fakeLedger) Handle(_ context.Context, cmd AwardXPCommand) (*AwardXPResult, error) {
	if err := l.failFor[cmd.ParticipantID]; err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.awards = append(l.awards, xpAward{participantID: cmd.ParticipantID, amount: cmd.Amount, reason: cmd.Reason})
	return &AwardXPResult{ParticipantID: cmd.ParticipantID, NewTotal: cmd.Amount, NewLevel: student.FloorLevel}, nil
}

type fakeParticipants struct {
	byID      map[shared.ParticipantID]*student.Participant
	createErr error
	updateErr error
	updated   []*student.Participant
	created   []*student.Participant
}

func newFakeParticipants(ps ...*student.Participant) *fakeParticipants {
	f := &fakeParticipants{byID: make(map[shared.ParticipantID]*student.Participant)}
	for _, p := range ps {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeParticipants) Create(_ context.Context, p *student.Participant) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.byID[p.ID] = p
	f.created = append(f.created, p)
	return nil
}

func (f *fakeParticipants) GetByID(_ context.Context, id shared.ParticipantID) (*student.Participant, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, student.ErrParticipantNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakeParticipants) ListByClass(context.Context, shared.ClassID) ([]*student.Participant, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeParticipants) UpdateProgress(_ context.Context, p *student.Participant) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.byID[p.ID] = p
	f.updated = append(f.updated, p)
	return nil
}

type fakeLevels struct {
	table *student.LevelTable
	err   error
}

func (f *fakeLevels) LoadTable(context.Context) (*student.LevelTable, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

type fakeHistory struct {
	changes []*student.XPChange
	saveErr error
}

func (f *fakeHistory) SaveChange(_ context.Context, change *student.XPChange) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.changes = append(f.changes, change)
	return nil
}

func (f *fakeHistory) ListByParticipant(context.Context, shared.ParticipantID, time.Time, time.Time) ([]*student.XPChange, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeHistory) LastReason(context.Context, shared.ParticipantID) (string, error) {
	return "", errors.New("not implemented")
}

type fakeClasses struct {
	byID       map[shared.ClassID]*classgroup.ClassGroup
	byCode     map[string]*classgroup.ClassGroup
	collisions int
	createErr  error
	updateErr  error
}

func newFakeClasses() *fakeClasses {
	return &fakeClasses{
		byID:   make(map[shared.ClassID]*classgroup.ClassGroup),
		byCode: make(map[string]*classgroup.ClassGroup),
	}
}

func (f *fakeClasses) Create(_ context.Context, c *classgroup.ClassGroup) error {
	if f.collisions > 0 {
		f.collisions--
		return classgroup.ErrInviteCodeTaken
	}
	if f.createErr != nil {
		return f.createErr
	}
	f.byID[c.ID] = c
	f.byCode[c.InviteCode] = c
	return nil
}

func (f *fakeClasses) GetByID(_ context.Context, id shared.ClassID) (*classgroup.ClassGroup, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, classgroup.ErrClassNotFound
	}
	return c, nil
}

func (f *fakeClasses) GetByInviteCode(_ context.Context, code string) (*classgroup.ClassGroup, error) {
	c, ok := f.byCode[code]
	if !ok {
		return nil, classgroup.ErrInviteCodeNotFound
	}
	return c, nil
}

func (f *fakeClasses) ListByTeacher(context.Context, string) ([]*classgroup.ClassGroup, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClasses) Update(_ context.Context, c *classgroup.ClassGroup) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.byID[c.ID] = c
	return nil
}

func (f *fakeClasses) Delete(_ context.Context, id shared.ClassID) error {
	delete(f.byID, id)
	return nil
}
