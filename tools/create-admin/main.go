package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

func main() {
	username := flag.String("username", "admin", "Username to create or promote")
	email := flag.String("email", "admin@example.com", "Email for new user")
	password := flag.String("password", "", "Password for new user")
	role := flag.String("role", "owner", "Role to assign: owner, admin or member")
	dbPath := flag.String("db", "./data/snapharbor.db", "Path to SQLite database")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("SNAPHARBOR_ADMIN_PASSWORD")
	}
	if *password == "" {
		log.Fatal("Password is required (use -password or set SNAPHARBOR_ADMIN_PASSWORD)")
	}
	switch *role {
	case "owner", "admin", "member":
	default:
		log.Fatalf("Invalid role %q: must be owner, admin or member", *role)
	}

	// Open database
	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	var existingID string
	err = db.QueryRow("SELECT id FROM users WHERE username = ?", *username).Scan(&existingID)
	if err == nil {
		if _, err := db.Exec("UPDATE users SET role = ?, updated_at = ? WHERE id = ?", *role, time.Now(), existingID); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("User %s promoted to %s.\n", *username, *role)
		return
	}
	if err != sql.ErrNoRows {
		log.Fatal(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), 12)
	if err != nil {
		log.Fatal(err)
	}

	now := time.Now()
	_, err = db.Exec(`
		INSERT INTO users (id, username, email, password_hash, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`, uuid.New().String(), *username, *email, string(hash), *role, now, now)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("User %s created with role %s.\n", *username, *role)
}
