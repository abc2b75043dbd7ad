package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscreener/internal/domain"
)

func validFilter() domain.Filter {
	return &domain.SimpleFilter{
		Target: &domain.Metric{Metric: "sector"},
		Op:     domain.OpEq,
		Value:  &domain.Constant{Kind: domain.ConstString, Str: "Technology"},
	}
}

func TestValidate_RequiresIDAndName(t *testing.T) {
	uq := &domain.UserQuery{Filter: validFilter()}
	err := uq.Validate()
	require.Error(t, err)

	uq.ID = "q1"
	err = uq.Validate()
	require.Error(t, err)

	uq.Name = "q1"
	require.NoError(t, uq.Validate())
}

func TestValidate_RejectsUnknownStatus(t *testing.T) {
	uq := &domain.UserQuery{ID: "q1", Name: "q1", Filter: validFilter(), Status: domain.Status("bogus")}
	err := uq.Validate()
	require.Error(t, err)
}

func TestValidate_AllowsEmptyStatus(t *testing.T) {
	uq := &domain.UserQuery{ID: "q1", Name: "q1", Filter: validFilter()}
	require.NoError(t, uq.Validate())
}

func TestValidate_RequiresFilter(t *testing.T) {
	uq := &domain.UserQuery{ID: "q1", Name: "q1"}
	require.Error(t, uq.Validate())
}

func TestValidate_RejectsNonPositiveLimit(t *testing.T) {
	zero := 0
	uq := &domain.UserQuery{ID: "q1", Name: "q1", Filter: validFilter(), Limit: &zero}
	require.Error(t, uq.Validate())

	negative := -5
	uq.Limit = &negative
	require.Error(t, uq.Validate())

	positive := 10
	uq.Limit = &positive
	require.NoError(t, uq.Validate())
}

func TestValidate_CompositeNotRequiresExactlyOneFilter(t *testing.T) {
	uq := &domain.UserQuery{ID: "q1", Name: "q1", Filter: &domain.CompositeFilter{
		Operator: domain.CompositeNot,
		Filters:  []domain.Filter{validFilter(), validFilter()},
	}}
	require.Error(t, uq.Validate())

	uq.Filter = &domain.CompositeFilter{Operator: domain.CompositeNot, Filters: []domain.Filter{validFilter()}}
	require.NoError(t, uq.Validate())
}

func TestValidate_CompositeAndOrRequireAtLeastOneFilter(t *testing.T) {
	uq := &domain.UserQuery{ID: "q1", Name: "q1", Filter: &domain.CompositeFilter{
		Operator: domain.CompositeAnd,
		Filters:  nil,
	}}
	require.Error(t, uq.Validate())
}

func TestGroupCriterion_IsGrouped(t *testing.T) {
	assert.False(t, domain.GroupCriterion{Dimension: "sector"}.IsGrouped())
	assert.True(t, domain.GroupCriterion{Dimension: "sector", Limit: 3}.IsGrouped())
}
