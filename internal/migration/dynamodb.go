package migration

import (
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"

	"github.com/sohbat-app/chat-service/internal/config"
)

// DynamoDBMigrator creates the service's tables on startup. Existing tables
// are left untouched.
type DynamoDBMigrator struct {
	db     *dynamodb.DynamoDB
	config *config.DynamoDBConfig
}

func NewDynamoDBMigrator(db *dynamodb.DynamoDB, cfg *config.DynamoDBConfig) *DynamoDBMigrator {
	return &DynamoDBMigrator{
		db:     db,
		config: cfg,
	}
}

func (m *DynamoDBMigrator) CreateTables() error {
	log.Println("Starting DynamoDB table creation...")

	if err := m.createProfilesTable(); err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}

	if err := m.createRoomsTable(); err != nil {
		return fmt.Errorf("failed to create rooms table: %w", err)
	}

	if err := m.createMembersTable(); err != nil {
		return fmt.Errorf("failed to create members table: %w", err)
	}

	if err := m.createMessagesTable(); err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}

	log.Println("All DynamoDB tables created successfully!")
	return nil
}

func (m *DynamoDBMigrator) tableExists(tableName string) bool {
	_, err := m.db.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	return err == nil
}

func (m *DynamoDBMigrator) createProfilesTable() error {
	tableName := m.config.ProfileTable

	if m.tableExists(tableName) {
		log.Printf("Table %s already exists, skipping creation", tableName)
		return nil
	}

	log.Printf("Creating table %s...", tableName)

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	}

	if _, err := m.db.CreateTable(input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return m.waitForTableActive(tableName)
}

func (m *DynamoDBMigrator) createRoomsTable() error {
	tableName := m.config.RoomTable

	if m.tableExists(tableName) {
		log.Printf("Table %s already exists, skipping creation", tableName)
		return nil
	}

	log.Printf("Creating table %s...", tableName)

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: aws.String("S"),
			},
			{
				AttributeName: aws.String("created_by"),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			{
				IndexName: aws.String("created-by-index"),
				KeySchema: []*dynamodb.KeySchemaElement{
					{
						AttributeName: aws.String("created_by"),
						KeyType:       aws.String("HASH"),
					},
				},
				Projection: &dynamodb.Projection{
					ProjectionType: aws.String("ALL"),
				},
			},
		},
	}

	if _, err := m.db.CreateTable(input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return m.waitForTableActive(tableName)
}

func (m *DynamoDBMigrator) createMembersTable() error {
	tableName := m.config.MemberTable

	if m.tableExists(tableName) {
		log.Printf("Table %s already exists, skipping creation", tableName)
		return nil
	}

	log.Printf("Creating table %s...", tableName)

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: aws.String("S"),
			},
			{
				AttributeName: aws.String("room_id"),
				AttributeType: aws.String("S"),
			},
			{
				AttributeName: aws.String("user_id"),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			{
				IndexName: aws.String("room-id-index"),
				KeySchema: []*dynamodb.KeySchemaElement{
					{
						AttributeName: aws.String("room_id"),
						KeyType:       aws.String("HASH"),
					},
				},
				Projection: &dynamodb.Projection{
					ProjectionType: aws.String("ALL"),
				},
			},
			{
				IndexName: aws.String("user-id-index"),
				KeySchema: []*dynamodb.KeySchemaElement{
					{
						AttributeName: aws.String("user_id"),
						KeyType:       aws.String("HASH"),
					},
				},
				Projection: &dynamodb.Projection{
					ProjectionType: aws.String("ALL"),
				},
			},
		},
	}

	if _, err := m.db.CreateTable(input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return m.waitForTableActive(tableName)
}

func (m *DynamoDBMigrator) createMessagesTable() error {
	tableName := m.config.MessageTable

	if m.tableExists(tableName) {
		log.Printf("Table %s already exists, skipping creation", tableName)
		return nil
	}

	log.Printf("Creating table %s...", tableName)

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: aws.String("S"),
			},
			{
				AttributeName: aws.String("room_id"),
				AttributeType: aws.String("S"),
			},
			{
				AttributeName: aws.String("created_at"),
				AttributeType: aws.String("S"), // fixed-width timestamp, sorts lexicographically
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			{
				IndexName: aws.String("room-created-index"),
				KeySchema: []*dynamodb.KeySchemaElement{
					{
						AttributeName: aws.String("room_id"),
						KeyType:       aws.String("HASH"),
					},
					{
						AttributeName: aws.String("created_at"),
						KeyType:       aws.String("RANGE"),
					},
				},
				Projection: &dynamodb.Projection{
					ProjectionType: aws.String("ALL"),
				},
			},
		},
	}

	if _, err := m.db.CreateTable(input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return m.waitForTableActive(tableName)
}

func (m *DynamoDBMigrator) waitForTableActive(tableName string) error {
	log.Printf("Waiting for table %s to become active...", tableName)

	maxRetries := 30
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		resp, err := m.db.DescribeTable(&dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %w", tableName, err)
		}

		if *resp.Table.TableStatus == "ACTIVE" {
			log.Printf("Table %s is now active", tableName)
			return nil
		}

		log.Printf("Table %s status: %s, waiting...", tableName, *resp.Table.TableStatus)
		time.Sleep(retryInterval)
	}

	return fmt.Errorf("table %s did not become active within timeout", tableName)
}

// Reset drops every table and recreates it. Development use only; all data
// is lost.
func (m *DynamoDBMigrator) Reset() error {
	log.Println("Resetting all tables...")

	tables := []string{
		m.config.ProfileTable,
		m.config.RoomTable,
		m.config.MemberTable,
		m.config.MessageTable,
	}

	for _, tableName := range tables {
		_, err := m.db.DeleteTable(&dynamodb.DeleteTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			log.Printf("Could not delete table %s (might not exist): %v", tableName, err)
			continue
		}

		log.Printf("Waiting for table %s to be fully deleted...", tableName)
		err = m.db.WaitUntilTableNotExists(&dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			return fmt.Errorf("failed waiting for table %s deletion: %w", tableName, err)
		}
	}

	return m.CreateTables()
}
