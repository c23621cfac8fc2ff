package models

import "time"

// MaxTitleLength is the upper bound on a task title, in characters.
const MaxTitleLength = 500

// Task represents our task model, mapping to the tasks table.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Todo is the simpler record behind POST /api/todos.
type Todo struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
