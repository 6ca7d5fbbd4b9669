package pool

import (
	"github.com/cakotreo/nsfminer/pkg/client"
	"github.com/cakotreo/nsfminer/pkg/client/httppoll"
	"github.com/cakotreo/nsfminer/pkg/client/simulate"
	"github.com/cakotreo/nsfminer/pkg/client/stratum"
)

// newClient constructs a fresh client.Client matching fam, mirroring
// rotateConnect step 7's "construct a new client matching the current
// endpoint's protocol family" (spec §4.4). This is the default factory;
// SetClientFactory overrides it.
func (m *Manager) newClient(fam client.Family) client.Client {
	switch fam {
	case client.FamilyHTTPPoll:
		return httppoll.New(m.log.WithField("client", fam.String()), m.settings)
	case client.FamilyStratum:
		return stratum.New(m.log.WithField("client", fam.String()), m.settings)
	default:
		return simulate.New(m.log.WithField("client", fam.String()), m.settings)
	}
}
