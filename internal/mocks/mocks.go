// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/souper/internal/locator"
	"github.com/xkilldash9x/souper/internal/session"
)

// -- Driver Mock --

// MockDriver mocks session.Driver.
type MockDriver struct {
	mock.Mock
}

var _ session.Driver = (*MockDriver)(nil)

func (m *MockDriver) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockDriver) WaitForLoad(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) CurrentHTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Resolve(ctx context.Context, loc locator.Locator) (session.ElementRef, bool, error) {
	args := m.Called(ctx, loc)
	return args.Get(0), args.Bool(1), args.Error(2)
}

func (m *MockDriver) Click(ctx context.Context, ref session.ElementRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockDriver) SendKeys(ctx context.Context, ref session.ElementRef, text string) error {
	args := m.Called(ctx, ref, text)
	return args.Error(0)
}

func (m *MockDriver) Submit(ctx context.Context, ref session.ElementRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockDriver) Text(ctx context.Context, ref session.ElementRef) (string, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Attribute(ctx context.Context, ref session.ElementRef, name string) (string, bool, error) {
	args := m.Called(ctx, ref, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockDriver) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.Error(1)
}

func (m *MockDriver) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// -- HTML Source Mock --

// MockHTMLSource mocks snapshot.HTMLSource.
type MockHTMLSource struct {
	mock.Mock
}

func (m *MockHTMLSource) CurrentHTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
