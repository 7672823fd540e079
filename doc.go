// Package ejrpc turns a struct of func fields into a JSON-RPC client.
//
// Each exported func field is one remote method. A field returning
// *Future[T] is a request; a field returning nothing or an error is a
// notification. Build installs the proxy funcs and returns the Stage that
// owns them: the stage hands serialized requests to Outbound and completes
// futures from the responses given to Handle.
//
//	type Calc struct {
//		Add func(ctx context.Context, a, b int) *ejrpc.Future[int] `rpc:"add" params:"a,b"`
//		Log func(line string) error                                  `rpc:"log"`
//	}
//
// Client runs a stage over a net.Conn.
package ejrpc
