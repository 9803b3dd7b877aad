package memory

import (
	"testing"

	"github.com/rhuss/voxorder/pkg/settings"
	"github.com/rhuss/voxorder/pkg/settings/settingstest"
)

func TestStore(t *testing.T) {
	settingstest.Run(t, func(t *testing.T) settings.Store {
		return New()
	})
}
