package main

import (
	"log"
	"os"

	"qmflow/internal/board"
	"qmflow/internal/config"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	userID := os.Getenv("QMFLOW_BOARD_USER")
	if userID == "" {
		userID = "reviewer"
	}
	b := board.NewBoard(board.NewClient(cfg.BoardAPIBase, userID))
	if _, err := tea.NewProgram(b, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
