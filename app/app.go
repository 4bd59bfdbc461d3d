package app

import (
	"database/sql"

	"github.com/pixeluwjal/sanghaforms-sub002/auth"
	"github.com/pixeluwjal/sanghaforms-sub002/config"
)

// App bundles the process-wide handles every route handler needs: the
// database connection pool, the token service and the parsed configuration.
type App struct {
	*sql.DB
	*auth.TokenAuth
	config.Config
}
