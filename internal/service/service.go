// Package service holds the business operations of the delivery backend:
// catalog and stock, the cart ledger, order submission, chat, location
// tracking and sign-in. Handlers call services; services call repositories
// and publish a realtime event after every committed write.
package service

import "time"

var timeNow = func() time.Time { return time.Now().UTC() }
