package dispatcher

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"switchboard/internal/collab"
	"switchboard/internal/logging"
	"switchboard/internal/metrics"
	"switchboard/internal/ot"
	"switchboard/internal/room"
	"switchboard/pkg/interfaces"
	"switchboard/pkg/types"
)

// Dispatcher translates named wire messages into calls on the Room
// Registry and the Instance Registry. It holds no per-connection state
// itself — that lives in Session — so one Dispatcher serves every
// connection.
type Dispatcher struct {
	rooms      *room.Registry
	docs       *collab.Registry
	namespaces interfaces.NamespaceStore
}

// New constructs a Dispatcher over the process-wide Room Registry and
// Instance Registry.
func New(rooms *room.Registry, docs *collab.Registry, namespaces interfaces.NamespaceStore) *Dispatcher {
	return &Dispatcher{rooms: rooms, docs: docs, namespaces: namespaces}
}

// Handle decodes one inbound wire message and routes it to the matching
// handler by its type tag.
func (d *Dispatcher) Handle(ctx context.Context, s *Session, raw []byte) error {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}

	switch msg.Type {
	case types.MsgJoin:
		return d.handleJoin(ctx, s, msg.Data)
	case types.MsgProgress:
		return d.handleProgress(s, msg.Data)
	case types.MsgEvent:
		return d.handleEvent(s, msg.Data)
	case types.MsgJoinChat:
		return d.handleJoinChat(s, msg.Data)
	case types.MsgLeaveChat:
		return d.handleLeaveChat(s, msg.Data)
	case types.MsgCloseChat:
		return d.handleCloseChat(s, msg.Data)
	case types.MsgChatMessage:
		return d.handleChatMessage(s, msg.Data)
	case types.MsgChatInvitation:
		return d.handleInvitation(s, types.MsgChatInvitation, msg.Data)
	case types.MsgVideoInvitation:
		return d.handleInvitation(s, types.MsgVideoInvitation, msg.Data)
	case types.MsgCreateGroups:
		return d.handleCreateGroups(s, msg.Data)
	case types.MsgDeleteGroups:
		return d.handleDeleteGroups(s)
	case types.MsgAddQuestion:
		return d.handleAddQuestion(s, msg.Data)
	case types.MsgRemoveQuestion:
		return d.handleRemoveQuestion(s, msg.Data)
	case types.MsgJoinCollaborativeEditing:
		return d.handleJoinEditing(ctx, s, msg.Data)
	case types.MsgSendCollaborativeEditingEvents:
		return d.handleSendEditingEvents(ctx, s, msg.Data)
	case types.MsgPollCollaborativeEditingEvents:
		return d.handlePollEditingEvents(s, msg.Data)
	case types.MsgUpdateCursor:
		return d.handleUpdateCursor(ctx, s, msg.Data)
	case types.MsgLeave, types.MsgDisconnect:
		d.handleLeave(s)
		return nil
	default:
		return ErrUnknownMessage
	}
}

func (d *Dispatcher) handleJoin(ctx context.Context, s *Session, raw json.RawMessage) error {
	var data joinData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	isOwner, err := d.namespaces.IsOwner(ctx, data.UserID, data.Namespace)
	if err != nil {
		return err
	}
	role := types.RoleStudent
	if isOwner {
		role = types.RoleOwner
	}
	if err := s.conn.SetCredentials(s.conn.GetUserEmail(), s.conn.GetUserEmail(), string(role)); err != nil {
		return err
	}

	roomName, err := types.RoomName(data.Namespace, data.Lesson)
	if err != nil {
		return err
	}
	r := d.rooms.GetOrCreate(roomName)
	member := room.NewMember(s.conn, s.conn.GetUserEmail(), s.conn.GetUserEmail(), role, room.DefaultAvatar)
	r.Join(member)

	s.currentRoom = r
	s.member = member
	metrics.RoomParticipants.WithLabelValues(roomName).Set(float64(r.MemberCount()))
	return nil
}

func (d *Dispatcher) requireRoom(s *Session) (*room.Room, error) {
	if s.currentRoom == nil || s.currentRoom.Destroyed() {
		return nil, ErrNotJoined
	}
	return s.currentRoom, nil
}

func (d *Dispatcher) handleProgress(s *Session, raw json.RawMessage) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	var data progressData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	r.EmitProgress(data.Progress, s.member)
	return nil
}

func (d *Dispatcher) handleEvent(s *Session, raw json.RawMessage) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	var data eventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	switch data.Target {
	case string(types.TargetMembers):
		r.EmitToMembers(types.MsgEvent, data.Fields)
	case string(types.TargetOwners):
		r.EmitToOwners(s.member, types.MsgEvent, data.Fields)
	default:
		r.EmitToEmail(data.Target, types.MsgEvent, data.Fields)
	}
	return nil
}

func (d *Dispatcher) handleJoinChat(s *Session, raw json.RawMessage) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	var data chatNameData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	r.JoinChat(data.Name, s.member)
	return nil
}

func (d *Dispatcher) handleLeaveChat(s *Session, raw json.RawMessage) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	var data chatNameData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	return r.LeaveChat(data.Name, s.member)
}

func (d *Dispatcher) handleCloseChat(s *Session, raw json.RawMessage) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	var data chatNameData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	return r.CloseChatForAll(s.member, data.Name)
}

func (d *Dispatcher) handleChatMessage(s *Session, raw json.RawMessage) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	var data chatMessageData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	if err := r.SendChatMessage(data.Name, s.member, data.Body, data.Anonymous); err != nil {
		return err
	}
	metrics.ChatMessagesTotal.WithLabelValues(r.Name()).Inc()
	return nil
}

func (d *Dispatcher) handleInvitation(s *Session, msgType string, raw json.RawMessage) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	var data inviteData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	target, ok := r.FindMemberByEmail(data.To)
	if !ok {
		return ErrMemberNotFound
	}
	target.Send(map[string]interface{}{"type": msgType, "payload": data.Data})
	return nil
}

func (d *Dispatcher) handleCreateGroups(s *Session, raw json.RawMessage) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	if !s.member.IsOwner() {
		return ErrOwnerRequired
	}
	var data groupsData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	groups := make([]room.Group, 0, len(data.Groups))
	for _, g := range data.Groups {
		groups = append(groups, room.Group{Name: g.Name, Members: g.Members})
	}
	r.CreateGroups(groups)
	return nil
}

func (d *Dispatcher) handleDeleteGroups(s *Session) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	if !s.member.IsOwner() {
		return ErrOwnerRequired
	}
	r.DeleteGroups()
	return nil
}

func (d *Dispatcher) handleAddQuestion(s *Session, raw json.RawMessage) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	var data questionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	r.AddQuestion(room.Question{Email: data.Email, Value: data.Value})
	return nil
}

func (d *Dispatcher) handleRemoveQuestion(s *Session, raw json.RawMessage) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	var data questionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	r.RemoveQuestion(room.Question{Email: data.Email, Value: data.Value})
	return nil
}

func (d *Dispatcher) handleJoinEditing(ctx context.Context, s *Session, raw json.RawMessage) error {
	var data joinEditingData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	inst, err := d.docs.GetInstance(ctx, data.DocID, "")
	if err != nil {
		return err
	}
	inst.RegisterUser(s.member.Email(), s.member.DisplayName(), "")
	metrics.DocInstancesActive.Set(float64(d.docs.Len()))

	s.member.Send(map[string]interface{}{
		"type": types.MsgJoinedCollaborativeEditing,
		"payload": map[string]interface{}{
			"docID":          data.DocID,
			"doc":            inst.Doc(),
			"version":        inst.Version(),
			"comments":       inst.CommentsSnapshot(),
			"commentVersion": inst.CommentVersion(),
			"users":          inst.UserCount(),
		},
	})
	return nil
}

func (d *Dispatcher) handleSendEditingEvents(ctx context.Context, s *Session, raw json.RawMessage) error {
	r, err := d.requireRoom(s)
	if err != nil {
		return err
	}
	var data sendEditingData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	if data.Version < 0 {
		return ErrInvalidVersion
	}
	inst, err := d.docs.GetInstance(ctx, data.DocID, "")
	if err != nil {
		return err
	}

	steps := make([]ot.Step, 0, len(data.Steps))
	for _, ws := range data.Steps {
		steps = append(steps, ws.toStep())
	}
	commentEvents := make([]types.CommentEvent, 0, len(data.CommentEvents))
	for _, ce := range data.CommentEvents {
		commentEvents = append(commentEvents, types.CommentEvent{Type: ce.Type, ID: ce.ID, From: ce.From, To: ce.To, Text: ce.Text})
	}

	result, err := inst.AddEvents(data.Version, steps, commentEvents, data.ClientID)
	if err != nil {
		return err
	}
	metrics.DocStepsAppliedTotal.WithLabelValues(data.DocID).Add(float64(len(steps)))

	s.member.Send(map[string]interface{}{
		"type": types.MsgSentCollaborativeEditingEvents,
		"payload": map[string]interface{}{
			"docID":          data.DocID,
			"version":        result.Version,
			"commentVersion": result.CommentVersion,
		},
	})

	// Broadcast the apply result to every other Member whose email is
	// active on this instance and who shares the current Room.
	payload := map[string]interface{}{
		"docID":          data.DocID,
		"version":        result.Version,
		"commentVersion": result.CommentVersion,
	}
	for _, email := range inst.ActiveEmails() {
		if email == s.member.Email() || !r.HasMember(email) {
			continue
		}
		r.EmitToEmail(email, types.MsgCollaborativeEditingEvents, payload)
	}
	return nil
}

func (d *Dispatcher) handlePollEditingEvents(s *Session, raw json.RawMessage) error {
	var data pollEditingData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	inst, err := d.docs.GetInstance(context.Background(), data.DocID, "")
	if err != nil {
		return err
	}
	diff, ok := inst.GetEvents(data.Version, data.CommentVersion, data.CursorVersion)
	if !ok {
		// Caller is already current: no reply.
		return nil
	}
	s.member.Send(map[string]interface{}{
		"type":    types.MsgPolledCollaborativeEditingEvents,
		"payload": fromEventsDiff(diff),
	})
	return nil
}

func (d *Dispatcher) handleUpdateCursor(ctx context.Context, s *Session, raw json.RawMessage) error {
	var data cursorData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	inst, err := d.docs.GetInstance(ctx, data.DocID, "")
	if err != nil {
		return err
	}
	inst.UpdateCursor(data.ClientID, types.CursorSelection{From: data.From, To: data.To})
	return nil
}

// Disconnect releases a Session's current Room/Member state. The
// websocket handler calls this once when the underlying socket closes,
// covering clients that never send an explicit "leave".
func (d *Dispatcher) Disconnect(s *Session) {
	d.handleLeave(s)
}

func (d *Dispatcher) handleLeave(s *Session) {
	if s.member == nil {
		return
	}
	d.docs.RemoveFromInstances(s.member.Email(), s.member.DisplayName())
	fields := []zap.Field{logging.Email(s.member.Email())}
	if s.currentRoom != nil {
		fields = append(fields, logging.Room(s.currentRoom.Name()))
		s.currentRoom.Leave(s.member)
	}
	logging.L().Info("session left", fields...)
	s.currentRoom = nil
	s.member = nil
}
