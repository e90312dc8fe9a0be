package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
)

func TestInspectReportsExtractedFields(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)

	var out bytes.Buffer
	inspect(&out, c, "Меня зовут Анна, хочу на лазерную эпиляцию ног, телефон 89261234567", 0)

	got := out.String()
	assert.Contains(t, got, "phone:    79261234567")
	assert.Contains(t, got, "name:     Анна (marked)")
	assert.Contains(t, got, "email:    -")
	assert.Contains(t, got, "topic:    laser_epilation")
	assert.Contains(t, got, "detail:   Зона = Ноги")
	assert.Contains(t, got, "ready:    yes (contact_pattern)")
}

func TestInspectEmail(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)

	var out bytes.Buffer
	inspect(&out, c, "пишите на Anna@Mail.ru", 0)
	assert.Contains(t, out.String(), "email:    anna@mail.ru")
}

func TestInspectGreeting(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)

	var out bytes.Buffer
	inspect(&out, c, "Здравствуйте", 0)

	got := out.String()
	assert.Contains(t, got, "phone:    -")
	assert.Contains(t, got, "topic:    -")
	assert.Contains(t, got, "name:     -")
	assert.Contains(t, got, "ready:    no")
}
