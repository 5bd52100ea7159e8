// Package psclient is the entry point for the psdatahelper library.
//
// Create a client with New and a psdata.Config, or use the convenience
// constructors when credentials are already at hand:
//
//	logger := pslog.New("nightly_import")
//
//	client, err := psclient.NewWithClientCredentials(ctx,
//		"myschool.powerschool.com", "my_plugin", clientID, clientSecret, logger)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	records := client.GetRecords(ctx, "u_demo", "grade_level==10", nil)
//
// When no credentials are configured, New loads them from the OS keyring and
// prompts on the terminal for anything missing, validating against the
// server before returning a connected client.
package psclient
