// Package rediskit is a convenience layer over a Redis connection with 16
// logical databases.
//
// A Client resolves the partition.Default sentinel against its own default
// database, memoizes the most recently selected partition handle, applies a
// per-partition lifetime to string writes and encodes values with a
// codec.Codec (JSON unless configured otherwise).
//
//	v := viper.New()
//	v.SetConfigFile("config.yaml")
//	_ = v.ReadInConfig()
//
//	c, err := rediskit.New(ctx, rediskit.Options{
//		Conn:      kv.Config{Endpoint: "127.0.0.1:6379", AbortOnConnectFail: true},
//		Lifetimes: v, // redis.lifetime.db0 .. redis.lifetime.db15, "dd.hh:mm:ss"
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	c.StringSet(ctx, "greeting", "hello", partition.DB2)
//	s, err := rediskit.StringGet[string](ctx, c, "greeting", partition.DB2)
//
// String values and set members go through the codec. Hash fields are
// stored in the store's native text form and read back with HashGetAs and
// HashGetAllAs, which convert rather than decode.
//
// Every operation has an asynchronous twin on Client.Async (or a *Async
// generic function) returning an *async.Future.
//
// A Client is safe for concurrent use, except that Reconfigure must not
// overlap other calls.
package rediskit
