package repomanager

import (
	"context"
	"database/sql"

	"github.com/fortifile/fortifile/internal/dbx"
	"github.com/fortifile/fortifile/internal/server/repositories/dlplogs"
	"github.com/fortifile/fortifile/internal/server/repositories/files"
	"github.com/fortifile/fortifile/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	DlpLogs(db dbx.DBTX) dlplogs.Repository
}
