package api

import (
	"github.com/imrysn/kmti-data-management/internal/config"
	"github.com/imrysn/kmti-data-management/internal/database"
	"github.com/imrysn/kmti-data-management/internal/storage"
	"go.uber.org/zap"
)

type Server struct {
	config  *config.Config
	store   *database.Store
	storage *storage.LocalStorage
	logger  *zap.Logger
}

func NewServer(cfg *config.Config, store *database.Store, storage *storage.LocalStorage, logger *zap.Logger) *Server {
	return &Server{
		config:  cfg,
		store:   store,
		storage: storage,
		logger:  logger,
	}
}
