package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/streamlate/streamlate/internal/models"
	"github.com/streamlate/streamlate/internal/translate"
)

// Connect opens the MySQL database and migrates the schema. Fatal on failure;
// the binaries cannot run without storage.
func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}, &translate.Record{}, &translate.Job{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}
