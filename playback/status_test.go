package playback

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Status", func() {
	It("should encode by name", func() {
		data, err := json.Marshal(map[string]Status{"status": StatusPaused})

		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"status":"paused"}`))
	})

	It("should decode by name", func() {
		var s Status
		Expect(json.Unmarshal([]byte(`"loading"`), &s)).To(Succeed())
		Expect(s).To(Equal(StatusLoading))

		Expect(json.Unmarshal([]byte(`"buffering"`), &s)).NotTo(Succeed())
	})

	It("should name unknown values", func() {
		Expect(Status(42).String()).To(Equal("status(42)"))
	})
})
