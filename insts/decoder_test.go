package insts_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/arch/arm/armasm"

	"github.com/iguana-debugger/libiguana/insts"
)

var _ = Describe("Decoder", func() {
	It("should decode MOV immediate", func() {
		// MOV R0, #5 -> 0xE3A00005
		Expect(insts.Decode(0xE3A00005)).To(Equal("mov r0, #5"))
	})

	It("should decode SVC", func() {
		// SWI 2 -> 0xEF000002
		Expect(insts.Decode(0xEF000002)).To(Equal("svc 0x00000002"))
	})

	It("should expose the structured instruction", func() {
		inst, err := insts.DecodeInst(0xE3A00005)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Args[0]).To(Equal(armasm.R0))
		Expect(inst.Len).To(Equal(4))
	})

	It("should fall back to a .word directive for words that do not decode", func() {
		for _, w := range []uint32{0xE3A00005, 0xFFFFFFFF, 0xF7F0A0F0, 0x00000000} {
			text := insts.DecodeOrWord(w)
			if _, err := insts.Decode(w); err != nil {
				Expect(text).To(Equal(fmt.Sprintf(".word 0x%08x", w)))
			} else {
				Expect(text).NotTo(HavePrefix(".word"))
			}
		}
	})
})
