/*
Package testutil provides shared test helpers for nodewatch.

# Fake base node

NewFakeBaseNode serves the base node gRPC service over an in-memory bufconn
listener. Point a client at it with its Target and DialOptions:

	func TestExample(t *testing.T) {
	    fake := testutil.NewFakeBaseNode(t)
	    fake.SetNetworkState(testutil.ReadyNetworkState(100, 1700000000))

	    client := basenode.New(fake.Target(), fake.DialOptions()...)
	    status, err := client.GetNetworkState(testutil.NewTestContext(t))
	    // ...
	}

# Logging

NewTestLogHook captures entries from every component logger for the duration
of a test:

	hook := testutil.NewTestLogHook(t)
	// ...
	hook.RequireEntry(t, logrus.ErrorLevel, "orphan chain detected")

# Metrics

NewTestMetrics gives a test its own registry and reads series back by name
and labels:

	m := testutil.NewTestMetrics(t)
	// register components on m.Registry()
	m.RequireValue("nodewatch_health_checks_total", 1, "status", "Healthy")

# Timing

RequireEventually and RequireNever poll a condition; NewTestContext bounds a
test with DefaultTimeout.
*/
package testutil
