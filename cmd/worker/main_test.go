package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labdesk/labdesk/internal/app"
	_ "github.com/labdesk/labdesk/testing"
)

func TestMainReturnsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	main()
}
