package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sohbat-app/chat-service/internal/models"
	"github.com/sohbat-app/chat-service/internal/realtime"
	"github.com/sohbat-app/chat-service/internal/repository"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotMember    = errors.New("not a member of this room")
	ErrNotAuthor    = errors.New("only the author may modify a message")
	ErrNameRequired = errors.New("room name is required")
	ErrEmptyMessage = errors.New("message is empty")
)

// Publisher pushes row change events onto the realtime feed.
type Publisher interface {
	PublishMessage(ctx context.Context, roomID string, event realtime.MessageEvent) error
	PublishMember(ctx context.Context, roomID string, event realtime.MemberEvent) error
}

type ChatService struct {
	dynamoRepo   repository.DynamoDBRepository
	redisRepo    repository.RedisRepository
	feed         Publisher
	historyLimit int
}

func NewChatService(
	dynamoRepo repository.DynamoDBRepository,
	redisRepo repository.RedisRepository,
	feed Publisher,
	historyLimit int,
) *ChatService {
	return &ChatService{
		dynamoRepo:   dynamoRepo,
		redisRepo:    redisRepo,
		feed:         feed,
		historyLimit: historyLimit,
	}
}

// Profiles

// EnsureProfile creates the profile row for a fresh identity; an existing
// profile is returned unchanged.
func (s *ChatService) EnsureProfile(ctx context.Context, userID, username string) (*models.Profile, error) {
	profile, err := s.dynamoRepo.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	now := time.Now()
	profile = &models.Profile{
		ID:        userID,
		Username:  username,
		Status:    models.StatusOffline,
		LastSeen:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.dynamoRepo.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return profile, nil
}

func (s *ChatService) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.dynamoRepo.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return profile, nil
}

// UpdateProfile changes the owning user's display fields.
func (s *ChatService) UpdateProfile(ctx context.Context, userID, fullName, avatarURL string) (*models.Profile, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.FullName = fullName
	profile.AvatarURL = avatarURL
	if err := s.dynamoRepo.UpdateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return profile, nil
}

// UpdateStatus records the user's status and last-seen time, mirroring the
// online flag into Redis.
func (s *ChatService) UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}

	profile.Status = status
	profile.LastSeen = time.Now()
	if err := s.dynamoRepo.UpdateProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	if status == models.StatusOnline {
		if err := s.redisRepo.SetUserOnline(ctx, userID); err != nil {
			log.Printf("Failed to mark user %s online in Redis: %v", userID, err)
		}
	} else {
		if err := s.redisRepo.SetUserOffline(ctx, userID); err != nil {
			log.Printf("Failed to mark user %s offline in Redis: %v", userID, err)
		}
	}

	return nil
}

// Rooms

// CreateRoom inserts the room row and then the creator's admin membership.
// The two writes are not transactional: if the membership insert fails the
// room exists without it, and the error is surfaced for the caller to retry.
func (s *ChatService) CreateRoom(ctx context.Context, userID, name, description string, private bool) (*models.ChatRoom, error) {
	if name == "" {
		return nil, ErrNameRequired
	}

	now := time.Now()
	room := &models.ChatRoom{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		IsPrivate:   private,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.dynamoRepo.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	member := &models.RoomMember{
		ID:       uuid.New().String(),
		RoomID:   room.ID,
		UserID:   userID,
		Role:     models.RoleAdmin,
		JoinedAt: now,
	}
	if err := s.dynamoRepo.AddMember(ctx, member); err != nil {
		log.Printf("Room %s created but admin membership insert failed: %v", room.ID, err)
		return nil, fmt.Errorf("failed to create admin membership: %w", err)
	}

	s.publishMember(ctx, room.ID, realtime.MemberEvent{
		Type:     realtime.EventInsert,
		New:      member,
		CommitAt: now,
	})

	return room, nil
}

func (s *ChatService) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	room, err := s.dynamoRepo.GetRoom(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	return room, nil
}

// ListRooms returns all public rooms plus the private rooms the user belongs
// to, most recently updated first.
func (s *ChatService) ListRooms(ctx context.Context, userID string) ([]*models.ChatRoom, error) {
	rooms, err := s.dynamoRepo.ListPublicRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list public rooms: %w", err)
	}

	seen := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		seen[room.ID] = true
	}

	memberships, err := s.dynamoRepo.GetUserMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	for _, membership := range memberships {
		if seen[membership.RoomID] {
			continue
		}
		room, err := s.dynamoRepo.GetRoom(ctx, membership.RoomID)
		if err != nil {
			log.Printf("Skipping room %s: %v", membership.RoomID, err)
			continue
		}
		seen[room.ID] = true
		rooms = append(rooms, room)
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})

	return rooms, nil
}

// JoinRoom inserts a membership row. Joining a room again is a no-op.
func (s *ChatService) JoinRoom(ctx context.Context, roomID, userID string) error {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	isMember, err := s.dynamoRepo.IsMember(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if isMember {
		return nil
	}
	if room.IsPrivate {
		return ErrNotMember
	}

	now := time.Now()
	member := &models.RoomMember{
		ID:       uuid.New().String(),
		RoomID:   roomID,
		UserID:   userID,
		Role:     models.RoleMember,
		JoinedAt: now,
	}
	if err := s.dynamoRepo.AddMember(ctx, member); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	s.publishMember(ctx, roomID, realtime.MemberEvent{
		Type:     realtime.EventInsert,
		New:      member,
		CommitAt: now,
	})
	s.announce(ctx, roomID, userID, "joined the room")

	return nil
}

// InviteUser adds another user to a room; for private rooms only admins and
// moderators may invite.
func (s *ChatService) InviteUser(ctx context.Context, roomID, inviterID, inviteeID string) error {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	if room.IsPrivate {
		members, err := s.dynamoRepo.GetRoomMembers(ctx, roomID)
		if err != nil {
			return fmt.Errorf("failed to check inviter role: %w", err)
		}
		allowed := false
		for _, m := range members {
			if m.UserID == inviterID && (m.Role == models.RoleAdmin || m.Role == models.RoleModerator) {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrNotMember
		}
	}

	isMember, err := s.dynamoRepo.IsMember(ctx, roomID, inviteeID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if isMember {
		return nil
	}

	now := time.Now()
	member := &models.RoomMember{
		ID:       uuid.New().String(),
		RoomID:   roomID,
		UserID:   inviteeID,
		Role:     models.RoleMember,
		JoinedAt: now,
	}
	if err := s.dynamoRepo.AddMember(ctx, member); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	s.publishMember(ctx, roomID, realtime.MemberEvent{
		Type:     realtime.EventInsert,
		New:      member,
		CommitAt: now,
	})
	s.announce(ctx, roomID, inviteeID, "joined the room")

	return nil
}

// LeaveRoom deletes the membership row.
func (s *ChatService) LeaveRoom(ctx context.Context, roomID, userID string) error {
	err := s.dynamoRepo.RemoveMember(ctx, roomID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotMember
	}
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	s.publishMember(ctx, roomID, realtime.MemberEvent{
		Type:     realtime.EventDelete,
		Old:      &models.RoomMember{RoomID: roomID, UserID: userID},
		CommitAt: time.Now(),
	})
	s.announce(ctx, roomID, userID, "left the room")

	return nil
}

// RoomMembers returns the membership rows with their profiles attached.
func (s *ChatService) RoomMembers(ctx context.Context, roomID string) ([]*models.RoomMember, error) {
	members, err := s.dynamoRepo.GetRoomMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	for _, member := range members {
		profile, err := s.dynamoRepo.GetProfile(ctx, member.UserID)
		if err != nil {
			log.Printf("Failed to load profile %s: %v", member.UserID, err)
			continue
		}
		member.Profile = profile
	}

	return members, nil
}

// CanAccess reports whether a user may read a room: public rooms are open,
// private rooms require a membership row.
func (s *ChatService) CanAccess(ctx context.Context, roomID, userID string) (bool, error) {
	room, err := s.GetRoom(ctx, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !room.IsPrivate {
		return true, nil
	}
	return s.dynamoRepo.IsMember(ctx, roomID, userID)
}

// Messages

// SendMessageInput is one outgoing message.
type SendMessageInput struct {
	RoomID   string
	UserID   string
	Content  string
	Type     models.MessageType
	FileURL  string
	FileName string
	FileSize int64
	ReplyTo  string
}

// SendMessage validates membership, persists the row, caches it and publishes
// the INSERT event. On failure nothing is mutated and the error is returned.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*models.Message, error) {
	if input.Content == "" && input.FileURL == "" {
		return nil, ErrEmptyMessage
	}

	isMember, err := s.dynamoRepo.IsMember(ctx, input.RoomID, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate membership: %w", err)
	}
	if !isMember {
		return nil, ErrNotMember
	}

	profile, err := s.Profile(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	message := &models.Message{
		ID:        uuid.New().String(),
		RoomID:    input.RoomID,
		UserID:    input.UserID,
		Username:  profile.Username,
		Content:   input.Content,
		Type:      input.Type,
		FileURL:   input.FileURL,
		FileName:  input.FileName,
		FileSize:  input.FileSize,
		ReplyTo:   input.ReplyTo,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.dynamoRepo.CreateMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	if err := s.redisRepo.CacheMessage(ctx, message); err != nil {
		log.Printf("Failed to cache message %s: %v", message.ID, err)
	}

	s.publishMessage(ctx, input.RoomID, realtime.MessageEvent{
		Type:     realtime.EventInsert,
		New:      message,
		CommitAt: now,
	})

	return message, nil
}

// EditMessage replaces the content and sets the edited flag. Author only.
func (s *ChatService) EditMessage(ctx context.Context, messageID, userID, content string) (*models.Message, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}

	message, err := s.getOwnMessage(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}

	updated, err := s.dynamoRepo.UpdateMessageContent(ctx, messageID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}

	if err := s.redisRepo.InvalidateRoom(ctx, message.RoomID); err != nil {
		log.Printf("Failed to invalidate cache for room %s: %v", message.RoomID, err)
	}

	s.publishMessage(ctx, message.RoomID, realtime.MessageEvent{
		Type:     realtime.EventUpdate,
		New:      updated,
		Old:      message,
		CommitAt: time.Now(),
	})

	return updated, nil
}

// DeleteMessage soft-deletes the row, retaining it for audit, and publishes a
// DELETE event so subscribers drop it from view. Author only.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, userID string) error {
	message, err := s.getOwnMessage(ctx, messageID, userID)
	if err != nil {
		return err
	}

	deleted, err := s.dynamoRepo.SoftDeleteMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	if err := s.redisRepo.InvalidateRoom(ctx, message.RoomID); err != nil {
		log.Printf("Failed to invalidate cache for room %s: %v", message.RoomID, err)
	}

	s.publishMessage(ctx, message.RoomID, realtime.MessageEvent{
		Type:     realtime.EventDelete,
		Old:      deleted,
		CommitAt: time.Now(),
	})

	return nil
}

func (s *ChatService) getOwnMessage(ctx context.Context, messageID, userID string) (*models.Message, error) {
	message, err := s.dynamoRepo.GetMessage(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	if message.UserID != userID {
		return nil, ErrNotAuthor
	}
	return message, nil
}

// History returns the room's bounded ascending message window, consulting the
// Redis cache before DynamoDB.
func (s *ChatService) History(ctx context.Context, roomID string) ([]*models.Message, error) {
	cached, err := s.redisRepo.GetCachedMessages(ctx, roomID, s.historyLimit)
	if err != nil {
		log.Printf("Failed to read message cache for room %s: %v", roomID, err)
	}

	// After an invalidation the cache refills one message per send, so a
	// partial window may hide older rows DynamoDB still holds. Only a full
	// window is authoritative.
	if len(cached) >= s.historyLimit {
		return cached, nil
	}

	messages, err := s.dynamoRepo.GetRoomMessages(ctx, roomID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	for _, message := range messages {
		if err := s.redisRepo.CacheMessage(ctx, message); err != nil {
			log.Printf("Failed to reseed message cache for room %s: %v", roomID, err)
			break
		}
	}

	return messages, nil
}

// announce persists and publishes a system message.
func (s *ChatService) announce(ctx context.Context, roomID, userID, text string) {
	profile, err := s.dynamoRepo.GetProfile(ctx, userID)
	username := userID
	if err == nil {
		username = profile.Username
	}

	now := time.Now()
	message := &models.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		UserID:    "system",
		Username:  "System",
		Content:   fmt.Sprintf("%s %s", username, text),
		Type:      models.MessageTypeSystem,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.dynamoRepo.CreateMessage(ctx, message); err != nil {
		log.Printf("Failed to create system message: %v", err)
		return
	}

	s.publishMessage(ctx, roomID, realtime.MessageEvent{
		Type:     realtime.EventInsert,
		New:      message,
		CommitAt: now,
	})
}

func (s *ChatService) publishMessage(ctx context.Context, roomID string, event realtime.MessageEvent) {
	if err := s.feed.PublishMessage(ctx, roomID, event); err != nil {
		log.Printf("Failed to publish message event for room %s: %v", roomID, err)
	}
}

func (s *ChatService) publishMember(ctx context.Context, roomID string, event realtime.MemberEvent) {
	if err := s.feed.PublishMember(ctx, roomID, event); err != nil {
		log.Printf("Failed to publish member event for room %s: %v", roomID, err)
	}
}
