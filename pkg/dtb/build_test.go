package dtb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woliveiras/sdprep/pkg/runner"
)

// fdtBlob assembles a minimal version 17 flattened devicetree.
func fdtBlob(model string, compatible []string, children ...string) []byte {
	var strs bytes.Buffer
	offsets := map[string]uint32{}
	nameOff := func(name string) uint32 {
		if o, ok := offsets[name]; ok {
			return o
		}
		o := uint32(strs.Len())
		strs.WriteString(name)
		strs.WriteByte(0)
		offsets[name] = o
		return o
	}

	var st bytes.Buffer
	u32 := func(v uint32) { _ = binary.Write(&st, binary.BigEndian, v) }
	pad := func() {
		for st.Len()%4 != 0 {
			st.WriteByte(0)
		}
	}
	begin := func(name string) {
		u32(1)
		st.WriteString(name)
		st.WriteByte(0)
		pad()
	}
	prop := func(name string, val []byte) {
		u32(3)
		u32(uint32(len(val)))
		u32(nameOff(name))
		st.Write(val)
		pad()
	}
	end := func() { u32(2) }

	begin("")
	prop("model", []byte(model+"\x00"))
	prop("compatible", []byte(strings.Join(compatible, "\x00")+"\x00"))
	for _, c := range children {
		begin(c)
		end()
	}
	end()
	u32(9)

	const headerSize = 40
	rsvOff := uint32(headerSize)
	structOff := rsvOff + 16
	stringsOff := structOff + uint32(st.Len())
	total := stringsOff + uint32(strs.Len())

	var out bytes.Buffer
	for _, v := range []uint32{0xd00dfeed, total, structOff, stringsOff, rsvOff, 17, 16, 0, uint32(strs.Len()), uint32(st.Len())} {
		_ = binary.Write(&out, binary.BigEndian, v)
	}
	out.Write(make([]byte, 16))
	out.Write(st.Bytes())
	out.Write(strs.Bytes())
	return out.Bytes()
}

const fakeCompiler = `#!/bin/sh
out=""
prev=""
for a in "$@"; do
	case "$a" in
	-Wp,-MD,*) echo "deps" > "${a#-Wp,-MD,}" ;;
	esac
	if [ "$prev" = "-o" ]; then out="$a"; fi
	prev="$a"
done
cat "$prev" > "$out"
`

const fakeDtc = `#!/bin/sh
out=""
dep=""
mode=dts
prev=""
for a in "$@"; do
	if [ "$prev" = "-o" ]; then out="$a"; fi
	if [ "$prev" = "-d" ]; then dep="$a"; fi
	if [ "$prev" = "-O" ]; then mode="$a"; fi
	prev="$a"
done
if [ -n "$dep" ]; then echo "deps" > "$dep"; fi
%s
if [ "$mode" = "dtb" ]; then
	cp %q "$out"
else
	cat "$prev" > "$out"
fi
`

type toolchain struct {
	kernel   string
	compiler string
	dts      string
	dtb      []byte
}

func writeExecutable(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
}

// newToolchain lays out a fake kernel tree, compiler and board source.
// dtcHook is shell inserted before dtc writes its output.
func newToolchain(t *testing.T, compiler, dtcHook string) toolchain {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	tc := toolchain{
		kernel: t.TempDir(),
		dtb:    fdtBlob("Altera SOCFPGA Cyclone V SoC Development Kit", []string{"altr,socfpga-cyclone5", "altr,socfpga"}, "chosen", "memory", "soc"),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(tc.kernel, "arch", "arm", "boot", "dts", "include"), 0o755))

	fixture := filepath.Join(t.TempDir(), "fixture.dtb")
	require.NoError(t, os.WriteFile(fixture, tc.dtb, 0o644))
	writeExecutable(t, filepath.Join(tc.kernel, "scripts", "dtc", "dtc"), fmt.Sprintf(fakeDtc, dtcHook, fixture))

	tc.compiler = filepath.Join(t.TempDir(), "arm-linux-gnueabihf-gcc")
	writeExecutable(t, tc.compiler, compiler)

	tc.dts = filepath.Join(t.TempDir(), "socfpga_cyclone5_board.dts")
	require.NoError(t, os.WriteFile(tc.dts, []byte("#include \"socfpga_cyclone5.dtsi\"\n/ { model = \"board\"; };\n"), 0o644))
	return tc
}

func (tc toolchain) request() Request {
	return Request{DTS: tc.dts, Arch: "arm", Compiler: tc.compiler, KernelRoot: tc.kernel}
}

func newBuilder() *Builder {
	logger, _ := logrusTest.NewNullLogger()
	return &Builder{Runner: runner.NewExecRunner(logger), Logger: logger}
}

func tmpFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	return matches
}

func TestBuild_ProducesDTBAndNoTemps(t *testing.T) {
	tc := newToolchain(t, fakeCompiler, "")

	out, err := newBuilder().Build(context.Background(), tc.request())
	require.NoError(t, err)

	dir := filepath.Dir(tc.dts)
	assert.Equal(t, filepath.Join(dir, "socfpga_cyclone5_board.dtb"), out)
	assert.FileExists(t, filepath.Join(dir, "socfpga_cyclone5_board.out.dts"))
	assert.Empty(t, tmpFiles(t, dir))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, tc.dtb, data)

	s, err := Inspect(out)
	require.NoError(t, err)
	assert.Equal(t, "Altera SOCFPGA Cyclone V SoC Development Kit", s.Model)
	assert.Equal(t, []string{"altr,socfpga-cyclone5", "altr,socfpga"}, s.Compatible)
	assert.Equal(t, []string{"chosen", "memory", "soc"}, s.Children)
}

func TestBuild_PreprocessFailure(t *testing.T) {
	tc := newToolchain(t, "#!/bin/sh\necho 'fatal error: socfpga.dtsi: No such file' >&2\nexit 1\n", "")

	_, err := newBuilder().Build(context.Background(), tc.request())
	require.Error(t, err)

	var serr *StageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, StagePreprocess, serr.Stage)
	assert.True(t, strings.HasPrefix(err.Error(), "preprocess failed: "))

	var cerr *runner.CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 1, cerr.ExitCode)
	assert.Equal(t, []string{"fatal error: socfpga.dtsi: No such file"}, cerr.Stderr)

	dir := filepath.Dir(tc.dts)
	assert.Empty(t, tmpFiles(t, dir))
	assert.NoFileExists(t, filepath.Join(dir, "socfpga_cyclone5_board.dtb"))
}

func TestBuild_ResolveFailureStillCleansUp(t *testing.T) {
	tc := newToolchain(t, fakeCompiler, `if [ "$mode" = "dts" ]; then exit 2; fi`)

	_, err := newBuilder().Build(context.Background(), tc.request())
	var serr *StageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, StageResolve, serr.Stage)
	assert.Empty(t, tmpFiles(t, filepath.Dir(tc.dts)))
}

func TestBuild_CompileFailure(t *testing.T) {
	tc := newToolchain(t, fakeCompiler, `if [ "$mode" = "dtb" ]; then exit 1; fi`)

	_, err := newBuilder().Build(context.Background(), tc.request())
	var serr *StageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, StageCompile, serr.Stage)
	assert.Empty(t, tmpFiles(t, filepath.Dir(tc.dts)))
	assert.FileExists(t, strings.TrimSuffix(tc.dts, ".dts")+".out.dts")
}

func TestRequest_Validate(t *testing.T) {
	tc := newToolchain(t, fakeCompiler, "")

	cases := []struct {
		name   string
		modify func(r *Request)
		want   string
	}{
		{"no kernel", func(r *Request) { r.KernelRoot = "" }, "no kernel source location"},
		{"kernel without scripts", func(r *Request) { r.KernelRoot = filepath.Join(tc.kernel, "arch") }, "is not valid"},
		{"no compiler", func(r *Request) { r.Compiler = "" }, "no compiler specified"},
		{"compiler is a dir", func(r *Request) { r.Compiler = tc.kernel }, "compiler specified"},
		{"no source", func(r *Request) { r.DTS = "" }, "missing source file"},
		{"source missing", func(r *Request) { r.DTS = tc.dts + ".nope" }, "source file"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := tc.request()
			c.modify(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}

	dtsi := filepath.Join(filepath.Dir(tc.dts), "board.dtsi")
	require.NoError(t, os.WriteFile(dtsi, nil, 0o644))
	r := tc.request()
	r.DTS = dtsi
	assert.ErrorContains(t, r.Validate(), "expected a DTS source file")

	r = tc.request()
	r.Arch = ""
	require.NoError(t, r.Validate())
	assert.Equal(t, DefaultArch, r.Arch)
	assert.True(t, filepath.IsAbs(r.DTS))
}

func TestCommands(t *testing.T) {
	r := Request{DTS: "/src/board.dts", Arch: "arm", Compiler: "/opt/cc/arm-gcc", KernelRoot: "/k"}
	p := PathsFor(r.DTS)

	pre := PreprocessCommand(r, p)
	assert.Equal(t, "/opt/cc/arm-gcc -E -Wp,-MD,/src/board.pre.tmp -nostdinc -Iarch/arm/boot/dts -Iarch/arm/boot/dts/include -undef -D__DTS__ -x assembler-with-cpp -o /src/board.tmp /src/board.dts", pre.String())
	assert.Equal(t, "/k", pre.Dir)

	res := ResolveCommand(r, p)
	assert.Equal(t, "/k/scripts/dtc/dtc -O dts -o /src/board.out.dts -b 0 -i arch/arm/boot/dts -d /src/board.dtc.tmp /src/board.tmp", res.String())
	assert.Equal(t, "/k", res.Dir)

	comp := CompileCommand(r, p)
	assert.Equal(t, "/k/scripts/dtc/dtc -I dts -O dtb -o /src/board.dtb /src/board.out.dts", comp.String())

	assert.Equal(t, []string{"/src/board.tmp", "/src/board.pre.tmp", "/src/board.dtc.tmp"}, p.Temps())
}

func TestResolveFromEnvironment(t *testing.T) {
	env := map[string]string{EnvKernelRoot: "/usr/src/linux-socfpga", EnvCrossCompile: "/opt/gcc/bin/arm-linux-gnueabihf-"}
	getenv := func(k string) string { return env[k] }
	empty := func(string) string { return "" }

	assert.Equal(t, "/k", ResolveKernelRoot("/k", getenv))
	assert.Equal(t, "/usr/src/linux-socfpga", ResolveKernelRoot("", getenv))
	assert.Equal(t, "", ResolveKernelRoot("", empty))

	assert.Equal(t, "/cc", ResolveCompiler("/cc", getenv))
	assert.Equal(t, "/opt/gcc/bin/arm-linux-gnueabihf-gcc", ResolveCompiler("", getenv))
	assert.Equal(t, "", ResolveCompiler("", empty))
}

func TestInspect_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.dtb")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a devicetree blob, just text"), 0o644))

	_, err := Inspect(path)
	assert.ErrorContains(t, err, "not a valid devicetree blob")
}

func TestRemoveTemps_IgnoresMissing(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a.tmp")
	require.NoError(t, os.WriteFile(present, nil, 0o644))

	require.NoError(t, RemoveTemps([]string{present, filepath.Join(dir, "b.tmp")}))
	assert.NoFileExists(t, present)

	nonEmpty := filepath.Join(dir, "dir.tmp")
	require.NoError(t, os.MkdirAll(filepath.Join(nonEmpty, "x"), 0o755))
	err := RemoveTemps([]string{nonEmpty})
	assert.Error(t, err)
}
