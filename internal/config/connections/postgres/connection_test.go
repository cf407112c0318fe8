package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNEscapesCredentials(t *testing.T) {
	info := ConnectionInfo{
		Host: "db", Port: "5432", User: "app", Password: "p@ss/word",
		DB: "liaison", SSLMode: "disable", AppName: "liaison",
	}
	dsn := info.DSN()
	assert.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/liaison?application_name=liaison&sslmode=disable", dsn)
}
