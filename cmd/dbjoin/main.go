// Command dbjoin finds join paths between tables of a PostgreSQL or MySQL
// database and prints them as JSON or SQL.
package main

import (
	"os"

	"github.com/koustreak/dbjoin/internal/cli"

	_ "github.com/koustreak/dbjoin/internal/database/mysql"
	_ "github.com/koustreak/dbjoin/internal/database/postgres"
)

func main() {
	os.Exit(cli.Execute())
}
