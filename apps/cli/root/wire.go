package root

import (
	"github.com/zenGate-Global/palmyra-fleet-migrator/apps/cli/cmd/bootstrap"
	"github.com/zenGate-Global/palmyra-fleet-migrator/apps/cli/cmd/migrate"
)

func init() {
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(migrate.Command())
}
