// Package mongo connects the MongoDB client backing usage.MongoStore, the
// document-store alternative for monthly usage counters.
//
//	db, err := mongo.ConnectDatabase(ctx, cfg)
//	store := usage.NewMongoStore(db)
//	err = store.EnsureIndexes(ctx)
package mongo
