/*
Package process invokes an external program as a typed function. A capability (Caat) is a command plus fixed leading arguments; invoking it spawns the command, hands it the arguments, and collects the single Value it sends back.

Each call owns a fresh rendezvous endpoint (a unix socket, or a named pipe on Windows). Protocol state reaches the child only through two environment variables, so it never collides with the child's own flag parsing:

  - CAAT_ARGS holds the wire-encoded JSON array of all arguments (bound leading arguments as Strings, then the call arguments).
  - CAAT_SOCKET holds the address of the rendezvous endpoint.

The child also receives the arguments on its command line: bound arguments verbatim, then each call argument as raw text if it is a String, or as its wire JSON otherwise. Programs that know nothing of this protocol can still be invoked.

A call proceeds as follows:

1. The caller sets CAAT_ARGS and CAAT_SOCKET and spawns the child.
2. The caller binds the endpoint and polls for a connection. Every few missed polls it checks whether the child has already exited.
3. The child connects, writes its wire-encoded result, and closes the connection.
4. The caller reads until end of stream, waits for the child, removes the endpoint, and decodes the result.

If the child exits without connecting, the call returns its exit code as an Integer (or Null if it was killed by a signal). The same holds when it dies partway through its response. Once a whole response has arrived, the exit status is ignored. Exit status is meaningful data, so it is not reported as a Failure. Spawn errors, endpoint errors and undecodable responses are returned as Failure values; a call never panics and never leaves its endpoint behind.

Calls are independent: a Caat can be shared by any number of goroutines, and each invocation binds and removes its own endpoint. There is no multiplexing, streaming, or cross-host transport.

The context passed to Invoke bounds the call. When it is done, the child is killed, the endpoint removed, and a Failure returned.
*/
package process
