package tester

import (
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/emrgen/wikistore/internal/model"
)

const (
	testPath = "../../.test/"
)

var (
	db *gorm.DB
)

func Setup() {
	RemoveTestDir()

	_ = os.Setenv("ENV", "test")

	err := os.MkdirAll(testPath+"db", os.ModePerm)
	if err != nil {
		panic(err)
	}

	db, err = gorm.Open(sqlite.Open(testPath+"db/wikistore.db"), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	err = model.Migrate(db)
	if err != nil {
		panic(err)
	}
}

func TestDB() *gorm.DB {
	return db
}

// FileRoot returns a fresh directory for file backend tests.
func FileRoot(name string) string {
	path := testPath + "file/" + name
	if err := os.RemoveAll(path); err != nil {
		panic(err)
	}
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		panic(err)
	}
	return path
}

// BoltPath returns a path for a fresh bolt database file.
func BoltPath(name string) string {
	if err := os.MkdirAll(testPath+"bolt", os.ModePerm); err != nil {
		panic(err)
	}
	path := testPath + "bolt/" + name + ".db"
	if err := os.RemoveAll(path); err != nil {
		panic(err)
	}
	return path
}

func RemoveTestDir() {
	err := os.RemoveAll(testPath)
	if err != nil {
		panic(err)
	}
}
