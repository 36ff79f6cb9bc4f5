package gpa

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	RegistrationNumber(name string) string
}

// RegisterSteps registers GPA record step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &gpaSteps{tc: tc}

	ctx.Step(`^I save GPAs for "([^"]*)":$`, steps.saveGpas)
	ctx.Step(`^I save GPAs for "([^"]*)" with a numeric registration number$`, steps.saveNumericRegistration)
	ctx.Step(`^I fetch the record for "([^"]*)"$`, steps.fetchRecord)
	ctx.Step(`^the record should hold exactly:$`, steps.recordShouldHoldExactly)
	ctx.Step(`^the record should belong to "([^"]*)"$`, steps.recordShouldBelongTo)
}

type gpaSteps struct {
	tc TestContext
}

func (s *gpaSteps) saveGpas(ctx context.Context, name string, table *godog.Table) error {
	gpas, err := tableToGpas(table)
	if err != nil {
		return err
	}
	return s.tc.POST("/save-gpa", map[string]any{
		"registrationNumber": s.tc.RegistrationNumber(name),
		"gpas":               gpas,
	})
}

func (s *gpaSteps) saveNumericRegistration(ctx context.Context, name string) error {
	return s.tc.POST("/save-gpa", map[string]any{
		"registrationNumber": 12345,
		"gpas":               map[string]float64{"sem1": 3.5},
	})
}

func (s *gpaSteps) fetchRecord(ctx context.Context, name string) error {
	return s.tc.GET("/get-gpa/"+url.PathEscape(s.tc.RegistrationNumber(name)), nil)
}

func (s *gpaSteps) recordShouldHoldExactly(ctx context.Context, table *godog.Table) error {
	want, err := tableToGpas(table)
	if err != nil {
		return err
	}
	raw, err := s.tc.GetResponseField("gpas")
	if err != nil {
		return err
	}
	got, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("gpas is %T, want object", raw)
	}
	if len(got) != len(want) {
		return fmt.Errorf("expected %d semesters, got %d: %v", len(want), len(got), got)
	}
	for semester, gpa := range want {
		v, ok := got[semester].(float64)
		if !ok || v != gpa {
			return fmt.Errorf("semester %s: expected %v, got %v", semester, gpa, got[semester])
		}
	}
	return nil
}

func (s *gpaSteps) recordShouldBelongTo(ctx context.Context, name string) error {
	v, err := s.tc.GetResponseField("registrationNumber")
	if err != nil {
		return err
	}
	if v != s.tc.RegistrationNumber(name) {
		return fmt.Errorf("expected registrationNumber %q, got %v", s.tc.RegistrationNumber(name), v)
	}
	return nil
}

// tableToGpas reads a two-column | semester | gpa | table with a header row.
func tableToGpas(table *godog.Table) (map[string]float64, error) {
	gpas := map[string]float64{}
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) != 2 {
			return nil, fmt.Errorf("row %d: want 2 cells, got %d", i, len(row.Cells))
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row.Cells[1].Value), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		gpas[strings.TrimSpace(row.Cells[0].Value)] = value
	}
	return gpas, nil
}
