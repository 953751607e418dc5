package main

import (
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/config"
	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/database"
	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/http/handlers"
	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/http/middleware"
	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/models"
	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/store"
	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	var db *gorm.DB
	var err error
	if cfg.DBDSN != "" {
		db, err = database.ConnectMySQL(cfg.DBDSN)
	} else {
		log.Printf("DB_DSN not set, using SQLite at %s", cfg.SQLitePath)
		db, err = database.ConnectSQLite(cfg.SQLitePath)
	}
	if err != nil {
		log.Fatal("failed connect db:", err)
	}

	if err := db.AutoMigrate(&models.Message{}); err != nil {
		log.Fatal("failed migrate:", err)
	}

	hub := ws.NewHub()
	st := store.New(db, cfg.StoreTimeout)
	router := ws.NewRouter(hub, st)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.ClientURL},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "messaging-service"})
	})

	// WebSocket endpoint
	wsH := &handlers.WSHandler{
		Hub:                  hub,
		Router:               router,
		JWTSecret:            cfg.JWTSecret,
		WSInsecureSkipVerify: cfg.WSInsecureSkipVerify,
	}
	r.GET("/ws", wsH.Handle)

	// REST fallback over the same durable message log
	msgH := &handlers.MessageHandler{Store: st}
	authed := r.Group("/api/messages")
	authed.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	authed.GET("/conversations", msgH.ListConversations)
	authed.GET("/conversation/:userId", msgH.GetConversation)
	authed.PATCH("/read/:messageId", msgH.MarkMessageRead)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Println("listening on", addr)
	log.Fatal(r.Run(addr))
}
