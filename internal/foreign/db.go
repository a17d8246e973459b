package foreign

// SQL access over database/sql. A connection is a handle whose resource
// bundles the open database and an optional transaction; dropping the handle
// rolls back and closes.

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"comp/internal/handles"
	"comp/internal/module"
	"comp/internal/value"
)

type dbConn struct {
	db *sql.DB
	tx *sql.Tx
}

func (c *dbConn) Close() error {
	if c.tx != nil {
		c.tx.Rollback()
		c.tx = nil
	}
	return c.db.Close()
}

// DB builds the "sql" module. Connection handles form a hierarchy under
// "db" so a function can require a particular driver's handle or any
// database connection at all.
func DB() *module.Module {
	m := module.New("sql")
	for _, path := range []string{"db", "db.mysql", "db.sqlite", "db.postgres"} {
		m.Handles.Define(&handles.Definition{Path: path})
	}

	m.RegisterForeign("connect", nil, fieldsShape(textField("driver"), textField("dsn")), fnConnect)
	m.RegisterForeign("query", handleShape("db"),
		fieldsShape(textField("sql"), optField("params", value.NewStruct())), fnQuery)
	m.RegisterForeign("exec", handleShape("db"),
		fieldsShape(textField("sql"), optField("params", value.NewStruct())), fnExec)
	m.RegisterForeign("begin", handleShape("db"), nil, fnBegin)
	m.RegisterForeign("commit", handleShape("db"), nil, fnCommit)
	m.RegisterForeign("rollback", handleShape("db"), nil, fnRollback)
	return m
}

// handlePathFor maps a database/sql driver name onto the handle hierarchy.
func handlePathFor(driver string) string {
	switch driver {
	case "mysql":
		return "db.mysql"
	case "sqlite3":
		return "db.sqlite"
	case "postgres":
		return "db.postgres"
	}
	return "db"
}

func fnConnect(ctx module.ForeignContext, _ value.Value, args *value.Struct) value.Value {
	driver, failv := textArg(args, "driver")
	if failv != nil {
		return failv
	}
	dsn, failv := textArg(args, "dsn")
	if failv != nil {
		return failv
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return value.NewFail(value.FailType, "failed to open connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return value.NewFail(value.FailNotFound, "failed to ping database: %v", err)
	}

	inst, err := ctx.GrabResource(handlePathFor(driver), &dbConn{db: db})
	if err != nil {
		db.Close()
		return value.NewFail(value.FailNotFound, "%v", err)
	}
	return inst
}

func liveConn(ctx module.ForeignContext, in value.Value) (*dbConn, *value.Fail) {
	h, ok := in.(*value.HandleInstance)
	if !ok {
		return nil, value.NewFail(value.FailType, "expected a connection handle, got %s", in.Kind())
	}
	res, failv := ctx.Live(h)
	if failv != nil {
		return nil, failv
	}
	conn, ok := res.(*dbConn)
	if !ok {
		return nil, value.NewFail(value.FailType, "handle %s is not a sql connection", h.Path)
	}
	return conn, nil
}

func sqlParams(args *value.Struct) []any {
	pv, ok := args.GetNamed("params")
	if !ok {
		return nil
	}
	ps, ok := pv.(*value.Struct)
	if !ok {
		return []any{sqlParam(pv)}
	}
	out := make([]any, 0, ps.Len())
	for _, f := range ps.Fields() {
		out = append(out, sqlParam(f.Value))
	}
	return out
}

func fnQuery(ctx module.ForeignContext, in value.Value, args *value.Struct) value.Value {
	conn, failv := liveConn(ctx, in)
	if failv != nil {
		return failv
	}
	stmt, failv := textArg(args, "sql")
	if failv != nil {
		return failv
	}
	params := sqlParams(args)

	var rows *sql.Rows
	var err error
	if conn.tx != nil {
		rows, err = conn.tx.Query(stmt, params...)
	} else {
		rows, err = conn.db.Query(stmt, params...)
	}
	if err != nil {
		return value.NewFail(value.FailType, "query failed: %v", err)
	}
	defer rows.Close()

	return renderRows(rows)
}

func fnExec(ctx module.ForeignContext, in value.Value, args *value.Struct) value.Value {
	conn, failv := liveConn(ctx, in)
	if failv != nil {
		return failv
	}
	stmt, failv := textArg(args, "sql")
	if failv != nil {
		return failv
	}
	params := sqlParams(args)

	var res sql.Result
	var err error
	if conn.tx != nil {
		res, err = conn.tx.Exec(stmt, params...)
	} else {
		res, err = conn.db.Exec(stmt, params...)
	}
	if err != nil {
		return value.NewFail(value.FailType, "exec failed: %v", err)
	}

	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	out := value.NewStruct()
	out.PutNamed("rowsAffected", value.Num(affected))
	out.PutNamed("lastInsertId", value.Num(lastID))
	return out
}

func fnBegin(ctx module.ForeignContext, in value.Value, _ *value.Struct) value.Value {
	conn, failv := liveConn(ctx, in)
	if failv != nil {
		return failv
	}
	if conn.tx != nil {
		return value.NewFail(value.FailType, "transaction already open")
	}
	tx, err := conn.db.Begin()
	if err != nil {
		return value.NewFail(value.FailType, "failed to begin transaction: %v", err)
	}
	conn.tx = tx
	return in
}

func fnCommit(ctx module.ForeignContext, in value.Value, _ *value.Struct) value.Value {
	conn, failv := liveConn(ctx, in)
	if failv != nil {
		return failv
	}
	if conn.tx == nil {
		return value.NewFail(value.FailNotFound, "no open transaction")
	}
	if err := conn.tx.Commit(); err != nil {
		conn.tx = nil
		return value.NewFail(value.FailType, "failed to commit transaction: %v", err)
	}
	conn.tx = nil
	return in
}

func fnRollback(ctx module.ForeignContext, in value.Value, _ *value.Struct) value.Value {
	conn, failv := liveConn(ctx, in)
	if failv != nil {
		return failv
	}
	if conn.tx == nil {
		return value.NewFail(value.FailNotFound, "no open transaction")
	}
	if err := conn.tx.Rollback(); err != nil {
		conn.tx = nil
		return value.NewFail(value.FailType, "failed to roll back transaction: %v", err)
	}
	conn.tx = nil
	return in
}

// renderRows materializes a result set as a positional struct of row structs,
// one named field per column.
func renderRows(rows *sql.Rows) value.Value {
	columns, err := rows.Columns()
	if err != nil {
		return value.NewFail(value.FailType, "reading columns: %v", err)
	}

	out := value.NewStruct()
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return value.NewFail(value.FailType, "scanning row: %v", err)
		}

		row := value.NewStruct()
		for i, col := range columns {
			row.PutNamed(col, fromGo(values[i]))
		}
		out.Append(row)
	}
	if err := rows.Err(); err != nil {
		return value.NewFail(value.FailType, "iterating rows: %v", err)
	}
	return out
}
