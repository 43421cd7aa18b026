package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

func setupRoutes(router *mux.Router) {
	router.HandleFunc("/gridData", getGridData).Methods(http.MethodGet)
	router.HandleFunc("/gridData", computeGridData).Methods(http.MethodPost)

	router.HandleFunc("/cache", getCacheDump).Methods(http.MethodGet)
	router.HandleFunc("/cache/backup", backupCache).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/cache/backups", listBackups).Methods(http.MethodGet)
	router.HandleFunc("/cache/restore", restoreCache).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/cache/clear", clearCache).Methods(http.MethodGet, http.MethodPost)

	router.HandleFunc("/health", getHealthStatus).Methods(http.MethodGet)
	router.HandleFunc("/stats", getStats).Methods(http.MethodGet)

	router.HandleFunc("/circuit-breaker", getCircuitBreakerStatus).Methods(http.MethodGet)
	router.HandleFunc("/circuit-breaker/reset", resetCircuitBreaker).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/circuit-breaker/simulate-failure", simulateCircuitBreakerFailure).Methods(http.MethodGet, http.MethodPost)

	router.HandleFunc("/", helpHandler)
}
