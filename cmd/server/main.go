package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/sohbat-app/chat-service/internal/auth"
	"github.com/sohbat-app/chat-service/internal/config"
	"github.com/sohbat-app/chat-service/internal/handlers"
	"github.com/sohbat-app/chat-service/internal/migration"
	"github.com/sohbat-app/chat-service/internal/realtime"
	"github.com/sohbat-app/chat-service/internal/repository"
	"github.com/sohbat-app/chat-service/internal/server"
	"github.com/sohbat-app/chat-service/internal/service"
	"github.com/sohbat-app/chat-service/internal/storage"
)

func main() {
	reset := flag.Bool("reset", false, "drop and recreate all tables (development only)")
	flag.Parse()

	cfg := config.Load()

	// AWS session shared by the migrator and the repository
	awsConfig := &aws.Config{
		Region: aws.String(cfg.DynamoDB.Region),
	}
	if cfg.DynamoDB.AccessKeyID != "" && cfg.DynamoDB.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			cfg.DynamoDB.AccessKeyID,
			cfg.DynamoDB.SecretAccessKey,
			"",
		)
	}

	// For local development with DynamoDB Local
	if os.Getenv("DYNAMODB_ENDPOINT") != "" {
		awsConfig.Endpoint = aws.String(os.Getenv("DYNAMODB_ENDPOINT"))
		log.Printf("Using DynamoDB endpoint: %s", os.Getenv("DYNAMODB_ENDPOINT"))
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		log.Fatalf("Failed to create AWS session: %v", err)
	}

	dynamoClient := dynamodb.New(sess)

	migrator := migration.NewDynamoDBMigrator(dynamoClient, &cfg.DynamoDB)
	if *reset {
		if err := migrator.Reset(); err != nil {
			log.Fatalf("Failed to reset DynamoDB tables: %v", err)
		}
	} else if err := migrator.CreateTables(); err != nil {
		log.Fatalf("Failed to create DynamoDB tables: %v", err)
	}

	dynamoRepo := repository.NewDynamoDBRepositoryWithClient(dynamoClient, cfg.DynamoDB)

	redisClient, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	redisRepo := repository.NewRedisRepository(redisClient)
	feed := realtime.NewFeed(redisClient)

	gateway := auth.NewGateway(cfg.Auth.ProviderURL)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	store, err := storage.NewS3Client(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize S3 storage: %v", err)
	}

	chatService := service.NewChatService(dynamoRepo, redisRepo, feed, cfg.Chat.HistoryLimit)

	hub := server.NewHub(chatService, feed)
	go hub.Run()

	wsHandler := service.NewWebSocketHandler(hub, chatService, verifier)

	authHandler := handlers.NewAuthHandler(gateway, chatService)
	roomHandler := handlers.NewRoomHandler(chatService)
	messageHandler := handlers.NewMessageHandler(chatService)
	uploadHandler := handlers.NewUploadHandler(store)
	profileHandler := handlers.NewProfileHandler(chatService)

	router := mux.NewRouter()
	router.Use(server.LoggingMiddleware)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.HandleFunc("/ws", wsHandler.HandleWebSocket)

	public := router.PathPrefix("/api/v1/auth").Subrouter()
	public.HandleFunc("/signup", authHandler.SignUp).Methods(http.MethodPost)
	public.HandleFunc("/signin", authHandler.SignIn).Methods(http.MethodPost)
	public.HandleFunc("/oauth", authHandler.OAuthURL).Methods(http.MethodGet)
	public.HandleFunc("/signout", authHandler.SignOut).Methods(http.MethodPost)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(server.AuthMiddleware(verifier))
	api.HandleFunc("/rooms", roomHandler.ListRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms", roomHandler.CreateRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{roomId}", roomHandler.GetRoom).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{roomId}/join", roomHandler.JoinRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{roomId}/leave", roomHandler.LeaveRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{roomId}/invite", roomHandler.InviteUser).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{roomId}/members", roomHandler.RoomMembers).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{roomId}/messages", messageHandler.History).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{roomId}/messages", messageHandler.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/{messageId}", messageHandler.EditMessage).Methods(http.MethodPut)
	api.HandleFunc("/messages/{messageId}", messageHandler.DeleteMessage).Methods(http.MethodDelete)
	api.HandleFunc("/uploads", uploadHandler.Upload).Methods(http.MethodPost)
	api.HandleFunc("/profiles/me", profileHandler.Me).Methods(http.MethodGet)
	api.HandleFunc("/profiles/me", profileHandler.UpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/profiles/me/status", profileHandler.UpdateStatus).Methods(http.MethodPut)
	api.HandleFunc("/profiles/{userId}", profileHandler.GetProfile).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPPort,
		Handler: router,
	}

	var group errgroup.Group
	group.Go(func() error {
		log.Printf("Starting HTTP server on %s", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	log.Println("Chat service started successfully!")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	hub.Close()

	if err := group.Wait(); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}

	log.Println("Server stopped")
}
