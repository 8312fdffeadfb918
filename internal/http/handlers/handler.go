package handlers

import (
	"time"

	"busussd/internal/repositories"
	"busussd/internal/services"
	"busussd/internal/ussd"

	"go.uber.org/zap"
)

// Handler carries the dependencies every endpoint needs.
type Handler struct {
	Customer     *ussd.CustomerMenu
	Operator     *ussd.OperatorMenu
	Auth         *services.OperatorAuth
	Store        repositories.Store
	Manifest     services.ManifestService
	Log          *zap.Logger
	QueryTimeout time.Duration
}
