package foreign

// Durable key/value storage over bbolt. An open store is a handle; dropping
// it closes the underlying file.

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"comp/internal/handles"
	"comp/internal/module"
	"comp/internal/value"
)

// Store builds the "store" module: open plus bucket-scoped put/get/delete/keys.
func Store() *module.Module {
	m := module.New("store")
	m.Handles.Define(&handles.Definition{Path: "store"})

	bucketAndKey := fieldsShape(textField("bucket"), textField("key"))
	m.RegisterForeign("open", nil, fieldsShape(textField("path")), fnStoreOpen)
	m.RegisterForeign("put", handleShape("store"),
		fieldsShape(textField("bucket"), textField("key"), textField("value")), fnStorePut)
	m.RegisterForeign("get", handleShape("store"), bucketAndKey, fnStoreGet)
	m.RegisterForeign("delete", handleShape("store"), bucketAndKey, fnStoreDelete)
	m.RegisterForeign("keys", handleShape("store"), fieldsShape(textField("bucket")), fnStoreKeys)
	return m
}

func fnStoreOpen(ctx module.ForeignContext, _ value.Value, args *value.Struct) value.Value {
	path, failv := textArg(args, "path")
	if failv != nil {
		return failv
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return value.NewFail(value.FailNotFound, "failed to open store %s: %v", path, err)
	}
	inst, err := ctx.GrabResource("store", db)
	if err != nil {
		db.Close()
		return value.NewFail(value.FailNotFound, "%v", err)
	}
	return inst
}

func liveStore(ctx module.ForeignContext, in value.Value) (*bolt.DB, *value.Fail) {
	h, ok := in.(*value.HandleInstance)
	if !ok {
		return nil, value.NewFail(value.FailType, "expected a store handle, got %s", in.Kind())
	}
	res, failv := ctx.Live(h)
	if failv != nil {
		return nil, failv
	}
	db, ok := res.(*bolt.DB)
	if !ok {
		return nil, value.NewFail(value.FailType, "handle %s is not a store", h.Path)
	}
	return db, nil
}

func fnStorePut(ctx module.ForeignContext, in value.Value, args *value.Struct) value.Value {
	db, failv := liveStore(ctx, in)
	if failv != nil {
		return failv
	}
	bucket, failv := textArg(args, "bucket")
	if failv != nil {
		return failv
	}
	key, failv := textArg(args, "key")
	if failv != nil {
		return failv
	}
	val, failv := textArg(args, "value")
	if failv != nil {
		return failv
	}

	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(val))
	})
	if err != nil {
		return value.NewFail(value.FailType, "put failed: %v", err)
	}
	return in
}

func fnStoreGet(ctx module.ForeignContext, in value.Value, args *value.Struct) value.Value {
	db, failv := liveStore(ctx, in)
	if failv != nil {
		return failv
	}
	bucket, failv := textArg(args, "bucket")
	if failv != nil {
		return failv
	}
	key, failv := textArg(args, "key")
	if failv != nil {
		return failv
	}

	var out value.Value
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			out = value.NewFail(value.FailNotFound, "bucket %s not found", bucket)
			return nil
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			out = value.NewFail(value.FailNotFound, "key %s not found in %s", key, bucket)
			return nil
		}
		out = value.Str(string(raw))
		return nil
	})
	if err != nil {
		return value.NewFail(value.FailType, "get failed: %v", err)
	}
	return out
}

func fnStoreDelete(ctx module.ForeignContext, in value.Value, args *value.Struct) value.Value {
	db, failv := liveStore(ctx, in)
	if failv != nil {
		return failv
	}
	bucket, failv := textArg(args, "bucket")
	if failv != nil {
		return failv
	}
	key, failv := textArg(args, "key")
	if failv != nil {
		return failv
	}

	err := db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return value.NewFail(value.FailType, "delete failed: %v", err)
	}
	return in
}

func fnStoreKeys(ctx module.ForeignContext, in value.Value, args *value.Struct) value.Value {
	db, failv := liveStore(ctx, in)
	if failv != nil {
		return failv
	}
	bucket, failv := textArg(args, "bucket")
	if failv != nil {
		return failv
	}

	out := value.NewStruct()
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			out.Append(value.Str(string(k)))
			return nil
		})
	})
	if err != nil {
		return value.NewFail(value.FailType, "keys failed: %v", err)
	}
	return out
}
