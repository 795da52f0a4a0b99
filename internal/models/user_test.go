package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Faculty ")
	assert.True(t, ok)
	assert.Equal(t, RoleFaculty, role)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
}

func TestRoleSetJSONIsSortedAndDeduplicated(t *testing.T) {
	set := NewRoleSet(RoleStudent, RoleAdmin, RoleStudent)
	raw, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["admin","student"]`, string(raw))

	var decoded RoleSet
	require.NoError(t, json.Unmarshal([]byte(`["faculty","faculty"]`), &decoded))
	assert.Len(t, decoded, 1)
	assert.True(t, decoded.IsStaff())
}

func TestRoleSetIntersects(t *testing.T) {
	assert.False(t, NewRoleSet(RoleStudent).Intersects(RoleAdmin))
	assert.True(t, NewRoleSet(RoleAdmin, RoleFaculty).Intersects(RoleAdmin))
	assert.False(t, RoleSet{}.Intersects(StaffRoles...))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 500, 41)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, NewPagination(1, 10, 0).TotalPages)
}

func TestDateJSON(t *testing.T) {
	var got Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-09"`), &got))
	assert.Equal(t, "2024-03-09", got.String())

	require.NoError(t, json.Unmarshal([]byte(`"2024-03-09T23:30:00Z"`), &got))
	assert.Equal(t, "2024-03-09", got.String())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &got))

	raw, err := json.Marshal(NewDate(time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, `"2025-01-02"`, string(raw))
}
