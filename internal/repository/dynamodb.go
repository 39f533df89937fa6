package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/expression"

	"github.com/sohbat-app/chat-service/internal/config"
	"github.com/sohbat-app/chat-service/internal/models"
)

// ErrNotFound is returned when a row does not exist (or no longer exists).
var ErrNotFound = errors.New("not found")

// timestampFormat keeps fixed-width fractional seconds so lexicographic order
// on the room-created-index RANGE key matches chronological order.
// time.RFC3339Nano drops trailing zeros and misorders sub-second ties.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

type DynamoDBRepository interface {
	// Profiles
	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, profile *models.Profile) error

	// Rooms
	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error)
	ListPublicRooms(ctx context.Context) ([]*models.ChatRoom, error)

	// Memberships
	AddMember(ctx context.Context, member *models.RoomMember) error
	RemoveMember(ctx context.Context, roomID, userID string) error
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	GetRoomMembers(ctx context.Context, roomID string) ([]*models.RoomMember, error)
	GetUserMemberships(ctx context.Context, userID string) ([]*models.RoomMember, error)

	// Messages
	CreateMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	UpdateMessageContent(ctx context.Context, messageID, content string) (*models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID string) (*models.Message, error)
	GetRoomMessages(ctx context.Context, roomID string, limit int) ([]*models.Message, error)
}

type dynamoDBRepository struct {
	db           *dynamodb.DynamoDB
	profileTable string
	roomTable    string
	memberTable  string
	messageTable string
}

func NewDynamoDBRepository(cfg config.DynamoDBConfig) (DynamoDBRepository, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewDynamoDBRepositoryWithClient(dynamodb.New(sess), cfg), nil
}

// NewDynamoDBRepositoryWithClient reuses an existing client, e.g. the one the
// migrator was built with.
func NewDynamoDBRepositoryWithClient(db *dynamodb.DynamoDB, cfg config.DynamoDBConfig) DynamoDBRepository {
	return &dynamoDBRepository{
		db:           db,
		profileTable: cfg.ProfileTable,
		roomTable:    cfg.RoomTable,
		memberTable:  cfg.MemberTable,
		messageTable: cfg.MessageTable,
	}
}

func (r *dynamoDBRepository) putItem(ctx context.Context, table string, item interface{}) error {
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = r.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

func (r *dynamoDBRepository) getItem(ctx context.Context, table, id string, out interface{}) error {
	result, err := r.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {
				S: aws.String(id),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}

	if result.Item == nil {
		return ErrNotFound
	}

	if err := dynamodbattribute.UnmarshalMap(result.Item, out); err != nil {
		return fmt.Errorf("failed to unmarshal item: %w", err)
	}

	return nil
}

// Profiles

func (r *dynamoDBRepository) CreateProfile(ctx context.Context, profile *models.Profile) error {
	return r.putItem(ctx, r.profileTable, profile)
}

func (r *dynamoDBRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.getItem(ctx, r.profileTable, userID, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *dynamoDBRepository) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now()
	return r.putItem(ctx, r.profileTable, profile)
}

// Rooms

func (r *dynamoDBRepository) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	return r.putItem(ctx, r.roomTable, room)
}

func (r *dynamoDBRepository) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := r.getItem(ctx, r.roomTable, roomID, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *dynamoDBRepository) ListPublicRooms(ctx context.Context) ([]*models.ChatRoom, error) {
	filterExpr := expression.Equal(expression.Name("is_private"), expression.Value(false))
	expr, err := expression.NewBuilder().WithFilter(filterExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build filter expression: %w", err)
	}

	result, err := r.db.ScanWithContext(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(r.roomTable),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rooms: %w", err)
	}

	var rooms []*models.ChatRoom
	for _, item := range result.Items {
		var room models.ChatRoom
		if err := dynamodbattribute.UnmarshalMap(item, &room); err != nil {
			continue // Skip invalid items
		}
		rooms = append(rooms, &room)
	}

	return rooms, nil
}

// Memberships

func (r *dynamoDBRepository) AddMember(ctx context.Context, member *models.RoomMember) error {
	return r.putItem(ctx, r.memberTable, member)
}

func (r *dynamoDBRepository) findMembership(ctx context.Context, roomID, userID string) (*models.RoomMember, error) {
	keyCond := expression.Key("room_id").Equal(expression.Value(roomID))
	filterExpr := expression.Equal(expression.Name("user_id"), expression.Value(userID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filterExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build membership expression: %w", err)
	}

	result, err := r.db.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.memberTable),
		IndexName:                 aws.String("room-id-index"),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query membership: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, ErrNotFound
	}

	var member models.RoomMember
	if err := dynamodbattribute.UnmarshalMap(result.Items[0], &member); err != nil {
		return nil, fmt.Errorf("failed to unmarshal membership: %w", err)
	}

	return &member, nil
}

func (r *dynamoDBRepository) RemoveMember(ctx context.Context, roomID, userID string) error {
	member, err := r.findMembership(ctx, roomID, userID)
	if err != nil {
		return err
	}

	_, err = r.db.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.memberTable),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {
				S: aws.String(member.ID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	return nil
}

func (r *dynamoDBRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	_, err := r.findMembership(ctx, roomID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *dynamoDBRepository) GetRoomMembers(ctx context.Context, roomID string) ([]*models.RoomMember, error) {
	keyCond := expression.Key("room_id").Equal(expression.Value(roomID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build members expression: %w", err)
	}

	result, err := r.db.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.memberTable),
		IndexName:                 aws.String("room-id-index"),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query room members: %w", err)
	}

	var members []*models.RoomMember
	for _, item := range result.Items {
		var member models.RoomMember
		if err := dynamodbattribute.UnmarshalMap(item, &member); err != nil {
			continue // Skip invalid items
		}
		members = append(members, &member)
	}

	return members, nil
}

func (r *dynamoDBRepository) GetUserMemberships(ctx context.Context, userID string) ([]*models.RoomMember, error) {
	keyCond := expression.Key("user_id").Equal(expression.Value(userID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build memberships expression: %w", err)
	}

	result, err := r.db.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.memberTable),
		IndexName:                 aws.String("user-id-index"),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query user memberships: %w", err)
	}

	var members []*models.RoomMember
	for _, item := range result.Items {
		var member models.RoomMember
		if err := dynamodbattribute.UnmarshalMap(item, &member); err != nil {
			continue // Skip invalid items
		}
		members = append(members, &member)
	}

	return members, nil
}

// Messages

func (r *dynamoDBRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	av, err := dynamodbattribute.MarshalMap(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// The default time marshaling is RFC3339Nano, which is not fixed-width;
	// rewrite the timestamps so the range key sorts correctly.
	av["created_at"] = &dynamodb.AttributeValue{
		S: aws.String(message.CreatedAt.UTC().Format(timestampFormat)),
	}
	av["updated_at"] = &dynamodb.AttributeValue{
		S: aws.String(message.UpdatedAt.UTC().Format(timestampFormat)),
	}

	_, err = r.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.messageTable),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put message: %w", err)
	}

	return nil
}

func (r *dynamoDBRepository) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	var message models.Message
	if err := r.getItem(ctx, r.messageTable, messageID, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *dynamoDBRepository) UpdateMessageContent(ctx context.Context, messageID, content string) (*models.Message, error) {
	updateExpr := expression.
		Set(expression.Name("content"), expression.Value(content)).
		Set(expression.Name("is_edited"), expression.Value(true)).
		Set(expression.Name("updated_at"), expression.Value(time.Now().UTC().Format(timestampFormat)))
	return r.updateMessage(ctx, messageID, updateExpr)
}

// SoftDeleteMessage flags the row as deleted. The row is retained.
func (r *dynamoDBRepository) SoftDeleteMessage(ctx context.Context, messageID string) (*models.Message, error) {
	updateExpr := expression.
		Set(expression.Name("is_deleted"), expression.Value(true)).
		Set(expression.Name("updated_at"), expression.Value(time.Now().UTC().Format(timestampFormat)))
	return r.updateMessage(ctx, messageID, updateExpr)
}

func (r *dynamoDBRepository) updateMessage(ctx context.Context, messageID string, updateExpr expression.UpdateBuilder) (*models.Message, error) {
	condExpr := expression.AttributeExists(expression.Name("id"))
	expr, err := expression.NewBuilder().WithUpdate(updateExpr).WithCondition(condExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update expression: %w", err)
	}

	result, err := r.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.messageTable),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {
				S: aws.String(messageID),
			},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              aws.String("ALL_NEW"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}

	var message models.Message
	if err := dynamodbattribute.UnmarshalMap(result.Attributes, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated message: %w", err)
	}

	return &message, nil
}

// GetRoomMessages returns the most recent window of non-deleted messages in
// ascending creation-time order, via the room-created-index GSI.
func (r *dynamoDBRepository) GetRoomMessages(ctx context.Context, roomID string, limit int) ([]*models.Message, error) {
	keyCond := expression.Key("room_id").Equal(expression.Value(roomID))
	filterExpr := expression.Equal(expression.Name("is_deleted"), expression.Value(false))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filterExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build messages expression: %w", err)
	}

	// Newest-first query so the limit bounds the window from the tail.
	result, err := r.db.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.messageTable),
		IndexName:                 aws.String("room-created-index"),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int64(int64(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	messages := make([]*models.Message, 0, len(result.Items))
	for _, item := range result.Items {
		var message models.Message
		if err := dynamodbattribute.UnmarshalMap(item, &message); err != nil {
			continue // Skip invalid items
		}
		messages = append(messages, &message)
	}

	// Reverse back to ascending order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
