package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"closelink/internal/advert"
	"closelink/internal/app"
	"closelink/internal/discovery"
	"closelink/internal/domain"
	"closelink/internal/fingerprint"
	"closelink/internal/identity"
	"closelink/internal/radio"
	"closelink/internal/scoring"
)

// simPeer is a synthetic nearby person used when running on the
// simulated radio; its cleartext profile is known so the full scorer
// can run, the way a field test with cooperating devices would.
type simPeer struct {
	profile domain.Profile
	rssi    int
}

func demoPeers() []simPeer {
	return []simPeer{
		{profile: domain.Profile{Name: "Maya", Age: 27, Sex: domain.SexFemale,
			Interests: []string{"music", "hiking", "coffee"}, Bio: "weekend trail runner"}, rssi: -52},
		{profile: domain.Profile{Name: "Tom", Age: 31, Sex: domain.SexMale,
			Interests: []string{"gaming", "movies"}, Bio: "couch critic"}, rssi: -60},
		{profile: domain.Profile{Name: "Ira", Age: 29, Sex: domain.SexOther,
			Interests: []string{"books", "coffee", "art"}, Bio: "gallery regular"}, rssi: -70},
		{profile: domain.Profile{Name: "Sam", Age: 45, Sex: domain.SexMale,
			Interests: []string{"hiking", "photography"}, Bio: "always outside"}, rssi: -83},
	}
}

func discoverCmd() *cobra.Command {
	var (
		runFor   time.Duration
		simulate bool
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Broadcast and scan for nearby compatible people",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			st := appCtx.Open(passphrase)
			me, ok, err := st.LoadProfile()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no profile yet; run `closelink profile init` first")
			}
			device, err := app.EnsureDevice(st)
			if err != nil {
				return err
			}
			secret, err := identity.NewDeviceSecret()
			if err != nil {
				return err
			}

			orch := discovery.New(appCtx.Radio, discovery.Config{
				StableDeviceID: device.StableID,
				Secret:         secret,
				Logger:         appCtx.Logger,
			})
			if err := orch.Start(me.Interests); err != nil {
				return err
			}
			defer orch.Stop()
			fmt.Printf("discovering as %s for %s...\n", orch.EphemeralID().Hex(), runFor)

			var known map[string]simPeer
			done := make(chan struct{})
			if sim, isSim := appCtx.Radio.(*radio.Simulated); isSim && simulate {
				var wiredPeers []wiredPeer
				wiredPeers, known = buildDemoPeers()
				go injectDemoPeers(sim, wiredPeers, done)
			}
			time.Sleep(runFor)
			close(done)

			printCandidates(me, orch.Bloom(), orch.Candidates(), known)
			return nil
		},
	}
	cmd.Flags().DurationVar(&runFor, "for", 15*time.Second, "how long to discover before reporting")
	cmd.Flags().BoolVar(&simulate, "simulate", true, "inject demo peers on the simulated radio")
	return cmd
}

type wiredPeer struct {
	rssi    int
	payload []byte
}

// buildDemoPeers gives each demo peer its own derived identity and
// packed advertisement, and returns the cleartext lookup for scoring.
func buildDemoPeers() ([]wiredPeer, map[string]simPeer) {
	known := make(map[string]simPeer)
	peers := make([]wiredPeer, 0, 4)
	for i, p := range demoPeers() {
		secret, err := identity.NewDeviceSecret()
		if err != nil {
			continue
		}
		stable := fmt.Sprintf("demo-%d", i)
		eph := identity.Derive(stable, identity.EpochAt(time.Now(), identity.DefaultRotationWindow), secret)
		fp := fingerprint.Build(p.profile.Interests, secret)
		payload, err := advert.Pack(advert.Payload{
			Version:     advert.VersionWide,
			EphemeralID: eph.Slice(),
			Fingerprint: fp.Obfuscated[:],
		})
		if err != nil {
			continue
		}
		known[eph.Hex()] = p
		peers = append(peers, wiredPeer{rssi: p.rssi, payload: payload})
	}
	return peers, known
}

// injectDemoPeers re-broadcasts each demo advertisement often enough to
// stay ahead of staleness eviction.
func injectDemoPeers(sim *radio.Simulated, peers []wiredPeer, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, w := range peers {
				sim.Inject(w.payload, w.rssi)
			}
		}
	}
}

func printCandidates(me domain.Profile, myBloom uint64, candidates []domain.Candidate, known map[string]simPeer) {
	if len(candidates) == 0 {
		fmt.Println("nobody nearby")
		return
	}

	type row struct {
		c      domain.Candidate
		result scoring.Result
		name   string
	}
	rows := make([]row, 0, len(candidates))
	for _, c := range candidates {
		r := row{c: c}
		if sp, ok := known[c.EphemeralID]; ok {
			r.name = sp.profile.Name
			r.result = scoring.Score(me, myBloom, scoring.Peer{
				Age:       sp.profile.Age,
				Sex:       sp.profile.Sex,
				Interests: sp.profile.Interests,
				Bio:       sp.profile.Bio,
				RSSI:      c.RSSI,
			}, scoring.DefaultWeights)
		} else {
			// Obfuscated stranger: proximity is all we can honestly say.
			r.result = scoring.Result{Score: scoring.Proximity(c.RSSI), Reason: "proximity only"}
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].result.Score > rows[j].result.Score })

	for _, r := range rows {
		label := r.c.EphemeralID
		if r.name != "" {
			label = fmt.Sprintf("%s (%s)", r.name, r.c.EphemeralID[:8])
		}
		switch {
		case r.result.Incompatible:
			fmt.Printf("  --    %-28s %s\n", label, r.result.Reason)
		case r.result.Score >= scoring.DefaultMatchThreshold:
			fmt.Printf("  %.2f  %-28s match: %s\n", r.result.Score, label, r.result.Reason)
		default:
			fmt.Printf("  %.2f  %-28s %s\n", r.result.Score, label, r.result.Reason)
		}
	}
}
