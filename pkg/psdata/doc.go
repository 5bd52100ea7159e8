// Package psdata provides the domain types and interfaces for working with a
// PowerSchool server's schema API.
//
// The package defines the tabular RecordSet model, the caller-facing Client
// interface, access-request directives derived from 403 responses, and the
// Config used to construct a client. A concrete implementation is provided by
// the psclient package, which wires credential acquisition, transport, and
// authentication. Most consumers should import psclient to construct a client
// and then interact with the Client interface exposed here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/schaubda/psdatahelper/pkg/psclient"
//	  "github.com/schaubda/psdatahelper/pkg/psdata"
//	  "github.com/schaubda/psdatahelper/pkg/pslog"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  logger := pslog.New("ps_api", false)
//
//	  cli, err := psclient.New(ctx, &psdata.Config{
//	    ServerAddress: "district.powerschool.com",
//	    Plugin:        "my-plugin",
//	    Logger:        logger,
//	  })
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  students := cli.GetRecords(ctx, "students", "dcid>0", nil)
//	  _ = students
//	}
//
// # Bulk writes
//
// Insert, update, and delete operate row by row: each row of the input set is
// one remote call, and the returned set carries the same rows in the same
// order with two extra columns, ColumnResponseStatusCode and
// ColumnResponseText. One row's failure never blocks another row.
package psdata
